package httpapi

import (
	"net/http"
	"strconv"

	"kopiadmin/backend/internal/domain"
)

func (a *API) handleVouchers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		vouchers, err := a.service.ListVouchers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"vouchers": vouchers})
	case http.MethodPost:
		var req domain.VoucherCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		voucher, err := a.service.CreateVoucher(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"voucher": voucher})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleVoucher(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		voucher, err := a.service.GetVoucher(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"voucher": voucher})
	case http.MethodPatch:
		var req domain.VoucherUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		voucher, err := a.service.UpdateVoucher(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"voucher": voucher})
	case http.MethodDelete:
		if err := a.service.DeleteVoucher(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleNewsList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		publishedOnly, _ := strconv.ParseBool(r.URL.Query().Get("published"))
		news, err := a.service.ListNews(r.Context(), publishedOnly)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"news": news})
	case http.MethodPost:
		var req domain.NewsCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		news, err := a.service.CreateNews(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"news": news})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleNews(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		news, err := a.service.GetNews(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"news": news})
	case http.MethodPatch:
		var req domain.NewsUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		news, err := a.service.UpdateNews(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"news": news})
	case http.MethodDelete:
		if err := a.service.DeleteNews(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}
