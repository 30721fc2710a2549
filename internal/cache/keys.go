package cache

import "fmt"

const (
	EntityCategory = "category"
	EntityProduct  = "product"
	EntityReceipt  = "receipt"
	EntityVoucher  = "voucher"
	EntityNews     = "news"
)

const (
	KeyCategoryList = "categories:list"
	KeyReceiptList  = "receipts:list"
	KeyVoucherList  = "vouchers:list"
)

func ProductListKey(categoryID string, search string, includeInactive bool) string {
	return fmt.Sprintf("products:list:%s:%s:%t", categoryID, search, includeInactive)
}

func ProductKey(id string) string { return "products:" + id }

func ReceiptLinesKey(receiptID string) string { return "receipts:lines:" + receiptID }

func DashboardKey(days int, threshold int) string {
	return fmt.Sprintf("dashboard:summary:%d:%d", days, threshold)
}

func LowStockKey(threshold int) string { return fmt.Sprintf("dashboard:low-stock:%d", threshold) }

func RestockKey(days int, threshold int) string {
	return fmt.Sprintf("dashboard:restock:%d:%d", days, threshold)
}

func VoucherKey(id string) string { return "vouchers:" + id }

func NewsListKey(publishedOnly bool) string { return fmt.Sprintf("news:list:%t", publishedOnly) }

func NewsKey(id string) string { return "news:" + id }

// KeysFor lists every cached view that a write to entity id makes stale.
//
//	category -> category list, product lists
//	product  -> the product, product lists, dashboards
//	receipt  -> receipt list, the receipt's lines, dashboards
//	voucher  -> voucher list, the voucher
//	news     -> news lists, the article
//
// An inventory write invalidates the receipt plus each touched product.
func KeysFor(entity string, id string) []string {
	switch entity {
	case EntityCategory:
		return []string{KeyCategoryList, "products:list:*"}
	case EntityProduct:
		keys := []string{"products:list:*", "dashboard:*"}
		if id != "" {
			keys = append(keys, ProductKey(id))
		}
		return keys
	case EntityReceipt:
		keys := []string{KeyReceiptList, "dashboard:*"}
		if id != "" {
			keys = append(keys, ReceiptLinesKey(id))
		}
		return keys
	case EntityVoucher:
		keys := []string{KeyVoucherList}
		if id != "" {
			keys = append(keys, VoucherKey(id))
		}
		return keys
	case EntityNews:
		keys := []string{"news:list:*"}
		if id != "" {
			keys = append(keys, NewsKey(id))
		}
		return keys
	default:
		return nil
	}
}
