package employee

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/hris/internal/rest"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type EmployeeDTO struct {
	Uid              string      `json:"uid"`
	EmployeeCode     string      `json:"employeeCode"`
	Name             string      `json:"name"`
	Email            string      `json:"email"`
	MobileNo         string      `json:"mobileNo"`
	DateOfBirth      string      `json:"dateOfBirth"`
	DateOfJoining    string      `json:"dateOfJoining"`
	Department       string      `json:"department"`
	Company          string      `json:"company"`
	Status           string      `json:"employeeStatus"`
	Role             string      `json:"role"`
	JobTitle         string      `json:"jobTitle"`
	WorkLocation     string      `json:"workLocation"`
	ReportingManager string      `json:"reportingManager"`
	EmploymentType   string      `json:"employmentType"`
	Gender           string      `json:"gender"`
	Nationality      string      `json:"nationality"`
	Salary           json.Number `json:"salary"`
	Notes            string      `json:"notes"`
	IsActive         bool        `json:"isActive"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// EmployeeRequestDTO is the body of create and update requests. An update only overwrites the
// fields present in the body.
type EmployeeRequestDTO struct {
	EmployeeCode     string          `json:"employeeCode"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	MobileNo         string          `json:"mobileNo"`
	DateOfBirth      string          `json:"dateOfBirth"`
	DateOfJoining    string          `json:"dateOfJoining"`
	Department       string          `json:"department"`
	Company          string          `json:"company"`
	Status           string          `json:"employeeStatus"`
	Role             string          `json:"role"`
	JobTitle         string          `json:"jobTitle"`
	WorkLocation     string          `json:"workLocation"`
	ReportingManager string          `json:"reportingManager"`
	EmploymentType   string          `json:"employmentType"`
	Gender           string          `json:"gender"`
	Nationality      string          `json:"nationality"`
	Salary           decimal.Decimal `json:"salary"`
	Notes            string          `json:"notes"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListEmployees godoc
// @Summary List employees
// @Description Active employees, newest first
// @Tags Employee
// @Produce json
// @Success 200 {array} EmployeeDTO
// @Failure 401 {object} rest.ErrorResponse "Invalid admin key"
// @Router /api/employees [get]
// @Security XAdminKey
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing employees")
	employees, err := h.service.List(r.Context())
	if err != nil {
		writeEmployeeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTOs(employees))
}

// SearchEmployees godoc
// @Summary Search employees
// @Description Case-insensitive match on name, employee code, email, department and role
// @Tags Employee
// @Produce json
// @Param query query string true "Text to look for"
// @Success 200 {array} EmployeeDTO
// @Failure 400 {object} rest.ErrorResponse "Missing query"
// @Router /api/employees/search [get]
// @Security XAdminKey
func (h *Handler) SearchEmployees(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	log.Debugf("Searching employees for %q", query)
	employees, err := h.service.Search(r.Context(), query)
	if err != nil {
		writeEmployeeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTOs(employees))
}

// GetEmployee godoc
// @Summary Get an employee
// @Tags Employee
// @Produce json
// @Param uid path string true "Employee UID"
// @Success 200 {object} EmployeeDTO
// @Failure 404 {object} rest.ErrorResponse "Employee not found"
// @Router /api/employees/{uid} [get]
// @Security XAdminKey
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	log.Debugf("Getting employee %s", uid)
	e, err := h.service.Get(r.Context(), uid)
	if err != nil {
		writeEmployeeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(e))
}

// CreateEmployee godoc
// @Summary Create an employee
// @Tags Employee
// @Accept json
// @Produce json
// @Param employee body EmployeeRequestDTO true "Employee"
// @Success 201 {object} EmployeeDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 409 {object} rest.ErrorResponse "Employee code or email already in use"
// @Router /api/employees [post]
// @Security XAdminKey
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating employee")
	var body EmployeeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), body.toDetails())
	if err != nil {
		writeEmployeeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created))
}

// UpdateEmployee godoc
// @Summary Update an employee
// @Description Fields missing from the body keep their current value
// @Tags Employee
// @Accept json
// @Produce json
// @Param uid path string true "Employee UID"
// @Param employee body EmployeeRequestDTO true "Fields to change"
// @Success 200 {object} EmployeeDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {object} rest.ErrorResponse "Employee not found"
// @Failure 409 {object} rest.ErrorResponse "Employee code or email already in use"
// @Router /api/employees/{uid} [put]
// @Security XAdminKey
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	log.Debugf("Updating employee %s", uid)
	current, err := h.service.Get(r.Context(), uid)
	if err != nil {
		writeEmployeeError(w, err)
		return
	}
	body := toRequestDTO(current.Details)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	updated, err := h.service.Update(r.Context(), uid, body.toDetails())
	if err != nil {
		writeEmployeeError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(updated))
}

// DeleteEmployee godoc
// @Summary Delete an employee
// @Description Removes the record permanently; a team manager linked to it is unlinked
// @Tags Employee
// @Param uid path string true "Employee UID"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse "Employee not found"
// @Router /api/employees/{uid} [delete]
// @Security XAdminKey
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	log.Debugf("Deleting employee %s", uid)
	if err := h.service.Delete(r.Context(), uid); err != nil {
		writeEmployeeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b EmployeeRequestDTO) toDetails() Details {
	return Details{
		EmployeeCode:     b.EmployeeCode,
		Name:             b.Name,
		Email:            b.Email,
		MobileNo:         b.MobileNo,
		DateOfBirth:      b.DateOfBirth,
		DateOfJoining:    b.DateOfJoining,
		Department:       b.Department,
		Company:          b.Company,
		Status:           b.Status,
		Role:             b.Role,
		JobTitle:         b.JobTitle,
		WorkLocation:     b.WorkLocation,
		ReportingManager: b.ReportingManager,
		EmploymentType:   b.EmploymentType,
		Gender:           b.Gender,
		Nationality:      b.Nationality,
		Salary:           b.Salary,
		Notes:            b.Notes,
	}
}

func toRequestDTO(d Details) EmployeeRequestDTO {
	return EmployeeRequestDTO{
		EmployeeCode:     d.EmployeeCode,
		Name:             d.Name,
		Email:            d.Email,
		MobileNo:         d.MobileNo,
		DateOfBirth:      d.DateOfBirth,
		DateOfJoining:    d.DateOfJoining,
		Department:       d.Department,
		Company:          d.Company,
		Status:           d.Status,
		Role:             d.Role,
		JobTitle:         d.JobTitle,
		WorkLocation:     d.WorkLocation,
		ReportingManager: d.ReportingManager,
		EmploymentType:   d.EmploymentType,
		Gender:           d.Gender,
		Nationality:      d.Nationality,
		Salary:           d.Salary,
		Notes:            d.Notes,
	}
}

func toDTO(e Employee) EmployeeDTO {
	return EmployeeDTO{
		Uid:              e.Uid,
		EmployeeCode:     e.EmployeeCode,
		Name:             e.Name,
		Email:            e.Email,
		MobileNo:         e.MobileNo,
		DateOfBirth:      e.DateOfBirth,
		DateOfJoining:    e.DateOfJoining,
		Department:       e.Department,
		Company:          e.Company,
		Status:           e.Status,
		Role:             e.Role,
		JobTitle:         e.JobTitle,
		WorkLocation:     e.WorkLocation,
		ReportingManager: e.ReportingManager,
		EmploymentType:   e.EmploymentType,
		Gender:           e.Gender,
		Nationality:      e.Nationality,
		Salary:           json.Number(e.Salary.StringFixed(2)),
		Notes:            e.Notes,
		IsActive:         e.IsActive,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func toDTOs(employees []Employee) []EmployeeDTO {
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toDTO(e))
	}
	return dtos
}

func writeEmployeeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var duplicateErr *DuplicateError
	switch {
	case errors.As(err, &validationErr):
		rest.WriteError(w, http.StatusBadRequest, validationErr.Error(), validationErr.Field)
	case errors.As(err, &duplicateErr):
		rest.WriteError(w, http.StatusConflict, duplicateErr.Error(), duplicateErr.Field)
	case errors.Is(err, ErrDuplicateEmployee):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, ErrEmployeeNotFound):
		rest.WriteError(w, http.StatusNotFound, "Employee not found", "")
	default:
		log.Errorf("employee request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}
