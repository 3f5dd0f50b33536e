package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/platform/httpx"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
	"github.com/louisbranch/tradebook/internal/voice"
)

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		h.writeError(w, r, badRequest(err))
		return false
	}
	return true
}

func listInput(r *http.Request) (domain.ListInput, error) {
	query := r.URL.Query()
	input := domain.ListInput{
		PageToken: query.Get("page_token"),
		Filter:    query.Get("filter"),
	}
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			return input, badRequest(fmt.Errorf("page_size must be a non-negative integer"))
		}
		input.PageSize = size
	}
	return input, nil
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, badRequest(fmt.Errorf("%s must be an RFC 3339 timestamp", key))
	}
	return t, nil
}

func (h *handlers) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.GetAccount(r.Context(), accountID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, accountToResponse(account))
}

func (h *handlers) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.svc.UpdateAccount(r.Context(), accountID(r), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, accountToResponse(account))
}

func (h *handlers) handleListClients(w http.ResponseWriter, r *http.Request) {
	input, err := listInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	clients, next, err := h.svc.ListClients(r.Context(), accountID(r), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := listClientsResponse{Clients: make([]clientResponse, 0, len(clients)), NextPageToken: next}
	for _, c := range clients {
		resp.Clients = append(resp.Clients, clientToResponse(c))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if !h.decode(w, r, &req) {
		return
	}
	client, err := h.svc.CreateClient(r.Context(), accountID(r), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, clientToResponse(client))
}

func (h *handlers) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.svc.GetClient(r.Context(), accountID(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, clientToResponse(client))
}

func (h *handlers) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if !h.decode(w, r, &req) {
		return
	}
	client, err := h.svc.UpdateClient(r.Context(), accountID(r), r.PathValue("id"), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, clientToResponse(client))
}

func (h *handlers) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteClient(r.Context(), accountID(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleListPrices(w http.ResponseWriter, r *http.Request) {
	input, err := listInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, next, err := h.svc.ListPriceItems(r.Context(), accountID(r), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := listPricesResponse{Prices: make([]priceResponse, 0, len(items)), NextPageToken: next}
	for _, item := range items {
		resp.Prices = append(resp.Prices, priceToResponse(item))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleCreatePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.svc.CreatePriceItem(r.Context(), accountID(r), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, priceToResponse(item))
}

func (h *handlers) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetPriceItem(r.Context(), accountID(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, priceToResponse(item))
}

func (h *handlers) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.svc.UpdatePriceItem(r.Context(), accountID(r), r.PathValue("id"), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, priceToResponse(item))
}

func (h *handlers) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePriceItem(r.Context(), accountID(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) quoteInput(r *http.Request, req quoteRequest) (domain.QuoteInput, error) {
	defaultVAT := domain.DefaultAccount("").DefaultVAT
	if req.needsDefaultVAT() {
		account, err := h.svc.GetAccount(r.Context(), accountID(r))
		if err != nil {
			return domain.QuoteInput{}, err
		}
		defaultVAT = account.DefaultVAT
	}
	input, err := req.input(defaultVAT)
	if err != nil {
		return domain.QuoteInput{}, badRequest(err)
	}
	return input, nil
}

func (h *handlers) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	input, err := listInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	quotes, next, err := h.svc.ListQuotes(r.Context(), accountID(r), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := listQuotesResponse{Quotes: make([]quoteResponse, 0, len(quotes)), NextPageToken: next}
	for _, q := range quotes {
		resp.Quotes = append(resp.Quotes, quoteToResponse(q))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := h.quoteInput(r, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	quote, err := h.svc.CreateQuote(r.Context(), accountID(r), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, quoteToResponse(quote))
}

func (h *handlers) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.svc.GetQuote(r.Context(), accountID(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quoteToResponse(quote))
}

func (h *handlers) handleUpdateQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := h.quoteInput(r, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	quote, err := h.svc.UpdateQuote(r.Context(), accountID(r), r.PathValue("id"), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quoteToResponse(quote))
}

func (h *handlers) handleSendQuote(w http.ResponseWriter, r *http.Request) {
	h.quoteAction(w, r, h.svc.SendQuote)
}

func (h *handlers) handleAcceptQuote(w http.ResponseWriter, r *http.Request) {
	h.quoteAction(w, r, h.svc.AcceptQuote)
}

func (h *handlers) handleRefuseQuote(w http.ResponseWriter, r *http.Request) {
	h.quoteAction(w, r, h.svc.RefuseQuote)
}

func (h *handlers) quoteAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, accountID, quoteID string) (domain.Quote, error)) {
	quote, err := action(r.Context(), accountID(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quoteToResponse(quote))
}

func (h *handlers) handleInvoiceQuote(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		h.writeError(w, r, badRequest(err))
		return
	}
	invoice, err := h.svc.InvoiceQuote(r.Context(), accountID(r), r.PathValue("id"), req.Plan)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, invoiceToResponse(invoice, h.now()))
}

func (h *handlers) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	input, err := listInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	invoices, next, err := h.svc.ListInvoices(r.Context(), accountID(r), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	now := h.now()
	resp := listInvoicesResponse{Invoices: make([]invoiceResponse, 0, len(invoices)), NextPageToken: next}
	for _, inv := range invoices {
		resp.Invoices = append(resp.Invoices, invoiceToResponse(inv, now))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.svc.GetInvoice(r.Context(), accountID(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoiceToResponse(invoice, h.now()))
}

func (h *handlers) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := domain.PaymentInput{Amount: req.Amount, Method: req.Method}
	if req.PaidTime != nil {
		input.PaidAt = *req.PaidTime
	}
	invoice, err := h.svc.RecordPayment(r.Context(), accountID(r), r.PathValue("id"), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoiceToResponse(invoice, h.now()))
}

func (h *handlers) handleCancelInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.svc.CancelInvoice(r.Context(), accountID(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoiceToResponse(invoice, h.now()))
}

func (h *handlers) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appointments, err := h.svc.ListAppointments(r.Context(), accountID(r), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := listAppointmentsResponse{Appointments: make([]appointmentResponse, 0, len(appointments))}
	for _, a := range appointments {
		resp.Appointments = append(resp.Appointments, appointmentToResponse(a))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	input, err := h.appointmentInput(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appointment, err := h.svc.CreateAppointment(r.Context(), accountID(r), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appointmentToResponse(appointment))
}

// appointmentInput prefers explicit fields; a transcript fills the times and
// the title when they are missing.
func (h *handlers) appointmentInput(req appointmentRequest) (domain.AppointmentInput, error) {
	var input domain.AppointmentInput
	if transcript := strings.TrimSpace(req.Transcript); transcript != "" {
		cmd := voice.Parse(transcript, h.now().In(h.loc))
		parsed, err := domain.AppointmentFromCommand(cmd, h.loc)
		if err != nil {
			return input, err
		}
		input = parsed
	} else if req.StartTime == nil || req.EndTime == nil {
		return input, apperrors.New(apperrors.CodeAppointmentInvalidRange, "start_time and end_time are required")
	}
	if req.StartTime != nil {
		input.StartAt = *req.StartTime
	}
	if req.EndTime != nil {
		input.EndAt = *req.EndTime
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		input.Title = title
	}
	input.ClientID = req.ClientID
	input.QuoteID = req.QuoteID
	input.Notes = req.Notes
	return input, nil
}

func (h *handlers) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.svc.GetAppointment(r.Context(), accountID(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appointmentToResponse(appointment))
}

func (h *handlers) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAppointment(r.Context(), accountID(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
