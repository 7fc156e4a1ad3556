package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/internal/repository"
	"github.com/vaidashi/phone-order-api/internal/service"
	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
)

type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// PaginationResponse wraps one page of a listing
type PaginationResponse struct {
	Items      interface{} `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Status     string      `json:"status,omitempty"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pagination reads page and page_size; out-of-range values fall back to the defaults
func pagination(r *http.Request) (page, pageSize, offset int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err = strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	return page, pageSize, (page - 1) * pageSize
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

type orderCreated struct {
	Order         *models.Order `json:"order"`
	EstimatedTime string        `json:"estimated_time"`
}

// createOrderHandler creates a paid order outside of a call
func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := req.Validate(); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := s.deps.Orders.CreateDirect(r.Context(), req.Draft())
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data: orderCreated{
			Order:         order,
			EstimatedTime: order.EstimatedTime(s.opts.DeliveryMinutes),
		},
	})
}

// getOrdersHandler returns one page of orders, optionally filtered by status and type
func (s *Server) getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize, offset := pagination(r)
	filter := repository.OrderFilter{Limit: pageSize, Offset: offset}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := models.ParseOrderStatus(raw)
		if !ok {
			s.respondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid status. Options: %s", joinStatuses(models.AllOrderStatuses)))
			return
		}
		filter.Status = status
	}

	if raw := r.URL.Query().Get("type"); raw != "" {
		orderType, ok := models.ParseOrderType(raw)
		if !ok {
			s.respondWithError(w, http.StatusBadRequest, "Invalid type. Options: pickup, delivery")
			return
		}
		filter.OrderType = orderType
	}

	orders, total, err := s.deps.Orders.List(r.Context(), filter)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: PaginationResponse{
			Items:      orders,
			TotalCount: total,
			Page:       page,
			PageSize:   pageSize,
			Status:     string(filter.Status),
		},
	})
}

func joinStatuses(statuses []models.OrderStatus) string {
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		parts[i] = string(st)
	}
	return strings.Join(parts, ", ")
}

// getOrderByIDHandler returns an order by ID
func (s *Server) getOrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := s.deps.Orders.GetByID(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

// updateOrderStatusHandler moves an order along its lifecycle
func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req UpdateStatusRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	status, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		s.respondWithError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid status. Options: %s", joinStatuses(models.AllOrderStatuses)))
		return
	}

	order, err := s.deps.Orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: order})
}

// getCallLogsHandler returns one page of call logs
func (s *Server) getCallLogsHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize, offset := pagination(r)

	logs, total, err := s.deps.CallLogs.List(r.Context(), pageSize, offset)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    PaginationResponse{Items: logs, TotalCount: total, Page: page, PageSize: pageSize},
	})
}

// getCallLogHandler returns the call log of one call
func (s *Server) getCallLogHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deps.CallLogs.GetByCallID(r.Context(), mux.Vars(r)["callId"])
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: entry})
}

type statsResponse struct {
	*service.Dashboard
	Environment  string `json:"environment"`
	ProviderMode string `json:"provider_mode"`
}

// getStatsHandler returns the dashboard figures
func (s *Server) getStatsHandler(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.deps.Orders.Stats(r.Context())
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: statsResponse{
			Dashboard:    dashboard,
			Environment:  s.opts.Env,
			ProviderMode: s.opts.ProviderMode,
		},
	})
}

// respondWithAppError maps err to its HTTP status. Messages of 5xx errors without an AppError
// are not exposed.
func (s *Server) respondWithAppError(w http.ResponseWriter, err error) {
	status := apperrors.StatusCode(err)

	var appErr *apperrors.AppError
	message := "Internal server error"

	switch {
	case errors.As(err, &appErr):
		message = appErr.Error()
	case status < http.StatusInternalServerError:
		message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err, "status", status)
	}

	s.respondWithJSON(w, status, ApiResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.Code(err),
	})
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
