package httpapi

import "net/http"

const (
	prefixV1       = "/v1/"
	prefixInternal = "/internal/"

	pathHealth  = "/healthz"
	pathMetrics = "/metrics"

	pathAccount = "/v1/account"

	pathClients = "/v1/clients"
	pathClient  = "/v1/clients/{id}"

	pathPrices = "/v1/prices"
	pathPrice  = "/v1/prices/{id}"

	pathQuotes       = "/v1/quotes"
	pathQuote        = "/v1/quotes/{id}"
	pathQuoteSend    = "/v1/quotes/{id}/send"
	pathQuoteAccept  = "/v1/quotes/{id}/accept"
	pathQuoteRefuse  = "/v1/quotes/{id}/refuse"
	pathQuoteInvoice = "/v1/quotes/{id}/invoice"

	pathInvoices       = "/v1/invoices"
	pathInvoice        = "/v1/invoices/{id}"
	pathInvoicePayment = "/v1/invoices/{id}/payments"
	pathInvoiceCancel  = "/v1/invoices/{id}/cancel"

	pathAppointments = "/v1/appointments"
	pathAppointment  = "/v1/appointments/{id}"

	pathToolVoice        = "/v1/tools/voice"
	pathToolTravelFee    = "/v1/tools/travel-fee"
	pathToolInstallments = "/v1/tools/installments"

	pathTrades = "/v1/trades"
	pathTrade  = "/v1/trades/{id}"

	// PathDueFollowUps lists due follow-ups across accounts.
	PathDueFollowUps = "/internal/followups/due"
	// PathFollowUpAction records that a follow-up step was sent.
	PathFollowUpAction = "/internal/followups/{kind}/{id}/actions"
)

func registerRoutes(mux *http.ServeMux, h *handlers) {
	mux.HandleFunc(http.MethodGet+" "+pathHealth, h.handleHealth)

	mux.HandleFunc(http.MethodGet+" "+pathAccount, h.handleGetAccount)
	mux.HandleFunc(http.MethodPut+" "+pathAccount, h.handleUpdateAccount)

	mux.HandleFunc(http.MethodGet+" "+pathClients, h.handleListClients)
	mux.HandleFunc(http.MethodPost+" "+pathClients, h.handleCreateClient)
	mux.HandleFunc(http.MethodGet+" "+pathClient, h.handleGetClient)
	mux.HandleFunc(http.MethodPut+" "+pathClient, h.handleUpdateClient)
	mux.HandleFunc(http.MethodDelete+" "+pathClient, h.handleDeleteClient)

	mux.HandleFunc(http.MethodGet+" "+pathPrices, h.handleListPrices)
	mux.HandleFunc(http.MethodPost+" "+pathPrices, h.handleCreatePrice)
	mux.HandleFunc(http.MethodGet+" "+pathPrice, h.handleGetPrice)
	mux.HandleFunc(http.MethodPut+" "+pathPrice, h.handleUpdatePrice)
	mux.HandleFunc(http.MethodDelete+" "+pathPrice, h.handleDeletePrice)

	mux.HandleFunc(http.MethodGet+" "+pathQuotes, h.handleListQuotes)
	mux.HandleFunc(http.MethodPost+" "+pathQuotes, h.handleCreateQuote)
	mux.HandleFunc(http.MethodGet+" "+pathQuote, h.handleGetQuote)
	mux.HandleFunc(http.MethodPut+" "+pathQuote, h.handleUpdateQuote)
	mux.HandleFunc(http.MethodPost+" "+pathQuoteSend, h.handleSendQuote)
	mux.HandleFunc(http.MethodPost+" "+pathQuoteAccept, h.handleAcceptQuote)
	mux.HandleFunc(http.MethodPost+" "+pathQuoteRefuse, h.handleRefuseQuote)
	mux.HandleFunc(http.MethodPost+" "+pathQuoteInvoice, h.handleInvoiceQuote)

	mux.HandleFunc(http.MethodGet+" "+pathInvoices, h.handleListInvoices)
	mux.HandleFunc(http.MethodGet+" "+pathInvoice, h.handleGetInvoice)
	mux.HandleFunc(http.MethodPost+" "+pathInvoicePayment, h.handleRecordPayment)
	mux.HandleFunc(http.MethodPost+" "+pathInvoiceCancel, h.handleCancelInvoice)

	mux.HandleFunc(http.MethodGet+" "+pathAppointments, h.handleListAppointments)
	mux.HandleFunc(http.MethodPost+" "+pathAppointments, h.handleCreateAppointment)
	mux.HandleFunc(http.MethodGet+" "+pathAppointment, h.handleGetAppointment)
	mux.HandleFunc(http.MethodDelete+" "+pathAppointment, h.handleDeleteAppointment)

	mux.HandleFunc(http.MethodPost+" "+pathToolVoice, h.handleVoice)
	mux.HandleFunc(http.MethodPost+" "+pathToolTravelFee, h.handleTravelFee)
	mux.HandleFunc(http.MethodPost+" "+pathToolInstallments, h.handleInstallments)

	mux.HandleFunc(http.MethodGet+" "+pathTrades, h.handleListTrades)
	mux.HandleFunc(http.MethodGet+" "+pathTrade, h.handleGetTrade)

	mux.HandleFunc(http.MethodGet+" "+PathDueFollowUps, h.handleDueFollowUps)
	mux.HandleFunc(http.MethodPost+" "+PathFollowUpAction, h.handleFollowUpAction)
}
