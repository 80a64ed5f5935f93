package manager

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/hris/internal/rest"
	"github.com/klokku/hris/pkg/ledger"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ManagerDTO struct {
	Uid              string      `json:"uid"`
	Username         string      `json:"username"`
	TeamName         string      `json:"teamName"`
	EmployeeName     string      `json:"employeeName"`
	Department       string      `json:"department"`
	EmployeeUid      string      `json:"employeeUid,omitempty"`
	IsActive         bool        `json:"isActive"`
	CreatedAt        time.Time   `json:"createdAt"`
	BudgetAllocated  json.Number `json:"budgetAllocated,omitempty"`
	BudgetUsed       json.Number `json:"budgetUsed,omitempty"`
	BalanceRemaining json.Number `json:"balanceRemaining,omitempty"`
}

type CreateManagerDTO struct {
	Username        string           `json:"username"`
	Password        string           `json:"password"`
	TeamName        string           `json:"teamName"`
	EmployeeName    string           `json:"employeeName"`
	Department      string           `json:"department"`
	EmployeeUid     string           `json:"employeeUid"`
	BudgetAllocated *decimal.Decimal `json:"budgetAllocated"`
}

type UpdateManagerDTO struct {
	TeamName        *string          `json:"teamName"`
	EmployeeName    *string          `json:"employeeName"`
	Department      *string          `json:"department"`
	EmployeeUid     *string          `json:"employeeUid"`
	Password        *string          `json:"password"`
	IsActive        *bool            `json:"isActive"`
	BudgetAllocated *decimal.Decimal `json:"budgetAllocated"`
}

type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponseDTO struct {
	Uid          string `json:"uid"`
	Username     string `json:"username"`
	TeamName     string `json:"teamName"`
	EmployeeName string `json:"employeeName"`
	Department   string `json:"department"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListManagers godoc
// @Summary List team managers
// @Description Active team managers, newest first, with their budget totals
// @Tags Manager
// @Produce json
// @Param includeInactive query bool false "Include deactivated managers"
// @Success 200 {array} ManagerDTO
// @Failure 401 {object} rest.ErrorResponse "Invalid admin key"
// @Router /api/managers [get]
// @Security XAdminKey
func (h *Handler) ListManagers(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing team managers")
	includeInactive := r.URL.Query().Has("includeInactive")
	managers, err := h.service.List(r.Context(), includeInactive)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	dtos := make([]ManagerDTO, 0, len(managers))
	for _, m := range managers {
		dtos = append(dtos, h.toDTO(r, m))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetManager godoc
// @Summary Get a team manager
// @Tags Manager
// @Produce json
// @Param uid path string true "Manager UID"
// @Success 200 {object} ManagerDTO
// @Failure 404 {object} rest.ErrorResponse "Team manager not found"
// @Router /api/managers/{uid} [get]
// @Security XAdminKey
func (h *Handler) GetManager(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	log.Debugf("Getting team manager %s", uid)
	m, err := h.service.Get(r.Context(), uid)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(r, m))
}

// CreateManager godoc
// @Summary Create a team manager
// @Description Creates the manager and opens its budget ledger
// @Tags Manager
// @Accept json
// @Produce json
// @Param manager body CreateManagerDTO true "Team manager"
// @Success 201 {object} ManagerDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 409 {object} rest.ErrorResponse "Username already in use or employee linked to another manager"
// @Router /api/managers [post]
// @Security XAdminKey
func (h *Handler) CreateManager(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating team manager")
	var body CreateManagerDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	n := NewManager{
		Username:     body.Username,
		Password:     body.Password,
		TeamName:     body.TeamName,
		EmployeeName: body.EmployeeName,
		Department:   body.Department,
		EmployeeUid:  body.EmployeeUid,
	}
	if body.BudgetAllocated != nil {
		n.BudgetAllocated = *body.BudgetAllocated
	}

	created, err := h.service.Create(r.Context(), n)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, h.toDTO(r, created))
}

// UpdateManager godoc
// @Summary Update a team manager
// @Description Partial update; a new budget must not be lower than the amount already spent
// @Tags Manager
// @Accept json
// @Produce json
// @Param uid path string true "Manager UID"
// @Param manager body UpdateManagerDTO true "Fields to change"
// @Success 200 {object} ManagerDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {object} rest.ErrorResponse "Team manager not found"
// @Failure 409 {object} rest.ErrorResponse "Employee linked to another manager"
// @Router /api/managers/{uid} [put]
// @Security XAdminKey
func (h *Handler) UpdateManager(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	log.Debugf("Updating team manager %s", uid)
	var body UpdateManagerDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), uid, Changes{
		TeamName:        body.TeamName,
		EmployeeName:    body.EmployeeName,
		Department:      body.Department,
		EmployeeUid:     body.EmployeeUid,
		Password:        body.Password,
		IsActive:        body.IsActive,
		BudgetAllocated: body.BudgetAllocated,
	})
	if err != nil {
		writeManagerError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, h.toDTO(r, updated))
}

// DeleteManager godoc
// @Summary Delete a team manager
// @Description Removes the manager together with its ledger
// @Tags Manager
// @Param uid path string true "Manager UID"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse "Team manager not found"
// @Router /api/managers/{uid} [delete]
// @Security XAdminKey
func (h *Handler) DeleteManager(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	log.Debugf("Deleting team manager %s", uid)
	if err := h.service.Delete(r.Context(), uid); err != nil {
		writeManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Login godoc
// @Summary Log in as a team manager
// @Description Checks the credentials and returns the uid to send in the X-Manager-Id header
// @Tags Manager
// @Accept json
// @Produce json
// @Param credentials body LoginDTO true "Credentials"
// @Success 200 {object} LoginResponseDTO
// @Failure 400 {object} rest.ErrorResponse "Missing username or password"
// @Failure 401 {object} rest.ErrorResponse "Invalid credentials or deactivated account"
// @Router /api/auth/manager-login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if body.Username == "" || body.Password == "" {
		rest.WriteError(w, http.StatusBadRequest, "Username and password are required", "")
		return
	}
	log.Debugf("Login attempt of team manager %s", body.Username)

	m, err := h.service.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			rest.WriteError(w, http.StatusUnauthorized, "Invalid credentials", "")
		case errors.Is(err, ErrManagerInactive):
			rest.WriteError(w, http.StatusUnauthorized, "Account is deactivated, contact an administrator", "")
		default:
			writeManagerError(w, err)
		}
		return
	}
	rest.WriteJSON(w, http.StatusOK, LoginResponseDTO{
		Uid:          m.Uid,
		Username:     m.Username,
		TeamName:     m.TeamName,
		EmployeeName: m.EmployeeName,
		Department:   m.Department,
	})
}

func (h *Handler) toDTO(r *http.Request, m Manager) ManagerDTO {
	dto := ManagerDTO{
		Uid:          m.Uid,
		Username:     m.Username,
		TeamName:     m.TeamName,
		EmployeeName: m.EmployeeName,
		Department:   m.Department,
		EmployeeUid:  m.EmployeeUid,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
	}
	view, err := h.service.Budget(r.Context(), m.Uid)
	if err != nil {
		if !errors.Is(err, ledger.ErrLedgerNotFound) {
			log.Warnf("failed to load budget of manager %s: %v", m.Uid, err)
		}
		return dto
	}
	dto.BudgetAllocated = ledger.Money(view.BudgetAllocated)
	dto.BudgetUsed = ledger.Money(view.BudgetUsed)
	dto.BalanceRemaining = ledger.Money(view.BalanceRemaining)
	return dto
}

func writeManagerError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var ledgerValidationErr *ledger.ValidationError
	switch {
	case errors.As(err, &validationErr):
		rest.WriteError(w, http.StatusBadRequest, validationErr.Error(), validationErr.Field)
	case errors.As(err, &ledgerValidationErr):
		rest.WriteError(w, http.StatusBadRequest, ledgerValidationErr.Error(), ledgerValidationErr.Field)
	case errors.Is(err, ledger.ErrBudgetExceeded):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrManagerNotFound):
		rest.WriteError(w, http.StatusNotFound, "Team manager not found", "")
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrEmployeeLinked), errors.Is(err, ledger.ErrLedgerExists):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	default:
		log.Errorf("team manager request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}
