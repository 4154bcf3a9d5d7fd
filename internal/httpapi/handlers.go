package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/solarshare/solarshare/internal/metrics"
	"github.com/solarshare/solarshare/pkg/engine"
	"github.com/solarshare/solarshare/pkg/ledger"
	"github.com/solarshare/solarshare/pkg/plant"
)

type projectRequest struct {
	ProjectID           string          `json:"project_id"`
	Name                string          `json:"name"`
	TotalKw             decimal.Decimal `json:"total_kw"`
	TariffPerKwh        decimal.Decimal `json:"tariff_per_kwh"`
	ExpectedMinKwhPerKw decimal.Decimal `json:"expected_min_kwh_per_kw"`
	ExpectedMaxKwhPerKw decimal.Decimal `json:"expected_max_kwh_per_kw"`
}

type projectPayload struct {
	ProjectID           string `json:"project_id"`
	Name                string `json:"name"`
	TotalKw             string `json:"total_kw"`
	TariffPerKwh        string `json:"tariff_per_kwh"`
	ExpectedMinKwhPerKw string `json:"expected_min_kwh_per_kw"`
	ExpectedMaxKwhPerKw string `json:"expected_max_kwh_per_kw"`
	ExpectedMinKwh      string `json:"expected_min_kwh"`
	ExpectedMaxKwh      string `json:"expected_max_kwh"`
	CreatedUnixUTC      int64  `json:"created_unix_utc"`
}

func toProjectPayload(project plant.Project) projectPayload {
	expected := plant.ExpectedRange(project)
	return projectPayload{
		ProjectID:           project.ProjectID,
		Name:                project.Name,
		TotalKw:             project.TotalKw.String(),
		TariffPerKwh:        project.TariffPerKwh.String(),
		ExpectedMinKwhPerKw: project.ExpectedMinKwhPerKw.String(),
		ExpectedMaxKwhPerKw: project.ExpectedMaxKwhPerKw.String(),
		ExpectedMinKwh:      expected.Min.String(),
		ExpectedMaxKwh:      expected.Max.String(),
		CreatedUnixUTC:      project.CreatedUnixUTC,
	}
}

func (server *Server) handleRegisterProject(ctx *gin.Context) {
	var request projectRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	err := server.plants.RegisterProject(ctx.Request.Context(), plant.Project{
		ProjectID:           request.ProjectID,
		Name:                request.Name,
		TotalKw:             request.TotalKw,
		TariffPerKwh:        request.TariffPerKwh,
		ExpectedMinKwhPerKw: request.ExpectedMinKwhPerKw,
		ExpectedMaxKwhPerKw: request.ExpectedMaxKwhPerKw,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"project_id": request.ProjectID})
}

func (server *Server) handleGetProject(ctx *gin.Context) {
	project, err := server.plants.GetProject(ctx.Request.Context(), ctx.Param("projectID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toProjectPayload(project))
}

type allocationRequest struct {
	UserID string          `json:"user_id"`
	Kw     decimal.Decimal `json:"kw"`
}

func (server *Server) handleCreateAllocation(ctx *gin.Context) {
	var request allocationRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	allocationID, err := server.plants.CreateAllocation(ctx.Request.Context(), ctx.Param("projectID"), request.UserID, request.Kw)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"allocation_id": allocationID})
}

type allocationPayload struct {
	AllocationID   string `json:"allocation_id"`
	UserID         string `json:"user_id"`
	Kw             string `json:"kw"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}

func (server *Server) handleListAllocations(ctx *gin.Context) {
	allocations, err := server.plants.ListAllocations(ctx.Request.Context(), ctx.Param("projectID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payload := make([]allocationPayload, 0, len(allocations))
	for _, allocation := range allocations {
		payload = append(payload, allocationPayload{
			AllocationID:   allocation.AllocationID,
			UserID:         allocation.UserID,
			Kw:             allocation.Kw.String(),
			CreatedUnixUTC: allocation.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"allocations": payload})
}

type readingRequest struct {
	Month  int             `json:"month"`
	Year   int             `json:"year"`
	Kwh    decimal.Decimal `json:"kwh"`
	Source string          `json:"source"`
}

func (server *Server) handleUpsertReading(ctx *gin.Context) {
	var request readingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	err := server.plants.UpsertReading(ctx.Request.Context(), ctx.Param("projectID"), request.Month, request.Year, request.Kwh, request.Source)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "stored"})
}

type periodRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (server *Server) handleValidateReading(ctx *gin.Context) {
	var request periodRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	validation, err := server.plants.ValidateReading(ctx.Request.Context(), ctx.Param("projectID"), request.Month, request.Year)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"valid":  validation.Valid,
		"reason": validation.Reason,
	})
}

type runOutcomePayload struct {
	UserID        string `json:"user_id"`
	EntryID       string `json:"entry_id,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
	Skipped       bool   `json:"skipped,omitempty"`
	AlreadyPosted bool   `json:"already_posted,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (server *Server) handleCreditRun(ctx *gin.Context) {
	var request periodRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	report, err := server.runner.Run(ctx.Request.Context(), ctx.Param("projectID"), request.Month, request.Year)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	outcomes := make([]runOutcomePayload, 0, len(report.Outcomes))
	for _, outcome := range report.Outcomes {
		payload := runOutcomePayload{
			UserID:        outcome.UserID,
			EntryID:       outcome.EntryID,
			AmountCents:   outcome.AmountCents.Int64(),
			Skipped:       outcome.Skipped,
			AlreadyPosted: outcome.AlreadyPosted,
		}
		if outcome.Err != nil {
			payload.Error = outcome.Err.Error()
		}
		outcomes = append(outcomes, payload)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"project_id":      report.ProjectID,
		"month":           report.Month,
		"year":            report.Year,
		"generation_kwh":  report.GenerationKwh.String(),
		"formula_version": report.FormulaVersion,
		"posted":          report.Posted,
		"already_posted":  report.AlreadyPosted,
		"skipped":         report.Skipped,
		"failed":          report.Failed,
		"posted_cents":    report.PostedCents,
		"outcomes":        outcomes,
	})
}

type calculationRequest struct {
	UserKw         decimal.Decimal `json:"user_kw"`
	TotalProjectKw decimal.Decimal `json:"total_project_kw"`
	GenerationKwh  decimal.Decimal `json:"generation_kwh"`
	Rate           decimal.Decimal `json:"rate"`
	Month          int             `json:"month"`
	Year           int             `json:"year"`
}

func (server *Server) handleCalculation(ctx *gin.Context) {
	var request calculationRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	result, err := engine.CalculateCredits(engine.Params{
		UserKw:         request.UserKw,
		TotalProjectKw: request.TotalProjectKw,
		GenerationKwh:  request.GenerationKwh,
		Rate:           request.Rate,
		Month:          request.Month,
		Year:           request.Year,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"credit_amount":       result.CreditAmount.String(),
		"user_share":          result.Details.UserShare.String(),
		"user_generation_kwh": result.Details.UserGeneration.String(),
		"formula_version":     result.FormulaVersion,
		"month":               result.Month,
		"year":                result.Year,
	})
}

func (server *Server) handleUserCredits(ctx *gin.Context) {
	userID := ctx.Param("userID")
	available, err := server.credits.AvailableCredits(ctx.Request.Context(), userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	savings, err := server.credits.LifetimeSavings(ctx.Request.Context(), userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"user_id":                userID,
		"available_cents":        available.Int64(),
		"available":              available.Decimal().String(),
		"lifetime_savings_cents": savings.Int64(),
		"lifetime_savings":       savings.Decimal().String(),
	})
}

type entryPayload struct {
	EntryID        string          `json:"entry_id"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	AmountCents    int64           `json:"amount_cents"`
	Month          int             `json:"month,omitempty"`
	Year           int             `json:"year,omitempty"`
	RefID          string          `json:"ref_id,omitempty"`
	RefType        string          `json:"ref_type,omitempty"`
	Description    string          `json:"description,omitempty"`
	FormulaVersion string          `json:"formula_version,omitempty"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedUnixUTC int64           `json:"created_unix_utc"`
}

func (server *Server) handleUserLedger(ctx *gin.Context) {
	filter := ledger.Filter{}
	if rawType := ctx.Query("type"); rawType != "" {
		entryType, err := ledger.ParseEntryType(rawType)
		if err != nil {
			server.respondError(ctx, err)
			return
		}
		filter.Type = entryType
	}
	filter.Month = intQuery(ctx, "month")
	filter.Year = intQuery(ctx, "year")
	filter.Limit = intQuery(ctx, "limit")

	entries, err := server.credits.ListEntries(ctx.Request.Context(), ctx.Param("userID"), filter)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payload := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, entryPayload{
			EntryID:        entry.EntryID,
			Type:           entry.Type.String(),
			Status:         entry.Status.String(),
			AmountCents:    entry.AmountCents.Int64(),
			Month:          entry.Month,
			Year:           entry.Year,
			RefID:          entry.RefID,
			RefType:        entry.RefType.String(),
			Description:    entry.Description,
			FormulaVersion: entry.FormulaVersion,
			Metadata:       json.RawMessage(entry.MetadataJSON),
			CreatedUnixUTC: entry.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"entries": payload})
}

type offsetRequest struct {
	BillID      string `json:"bill_id"`
	AmountCents int64  `json:"amount_cents"`
}

func (server *Server) handleBillOffset(ctx *gin.Context) {
	var request offsetRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	userID := ctx.Param("userID")
	entryID, err := server.credits.ApplyCreditsToBill(ctx.Request.Context(), userID, request.BillID, ledger.AmountCents(request.AmountCents))
	if err != nil {
		if ledgerIsInsufficient(err) {
			server.metrics.ObserveOffset(metrics.OutcomeInsufficient, 0)
		} else {
			server.metrics.ObserveOffset(metrics.OutcomeError, 0)
		}
		server.respondError(ctx, err)
		return
	}
	server.metrics.ObserveOffset(metrics.OutcomeOK, request.AmountCents)

	remaining, err := server.credits.AvailableCredits(ctx.Request.Context(), userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"entry_id":        entryID,
		"applied_cents":   request.AmountCents,
		"remaining_cents": remaining.Int64(),
	})
}

func ledgerIsInsufficient(err error) bool {
	var insufficient ledger.InsufficientCreditsError
	return errors.As(err, &insufficient)
}

func intQuery(ctx *gin.Context, name string) int {
	raw := ctx.Query(name)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
