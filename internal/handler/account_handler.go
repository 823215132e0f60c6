package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/eaglebank/ledger-service/internal/repository"
	"github.com/eaglebank/ledger-service/internal/transfer"
	"github.com/eaglebank/ledger-service/shared/cqrs"
	"github.com/eaglebank/ledger-service/shared/middleware"
	"github.com/eaglebank/ledger-service/shared/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.AccountSummary, error)
	DeleteAccount(context.Context, cqrs.DeleteAccountCommand) error
	SetAccountState(context.Context, cqrs.SetAccountStateCommand) (*models.AccountState, error)
	Transfer(context.Context, cqrs.TransferCommand) (transfer.Result, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(cqrs.GetAccountQuery) (*models.AccountSummary, error)
	GetAccountState(cqrs.GetAccountStateQuery) (*models.AccountState, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

// CreateAccountRequest opens an account. A missing amount opens it empty.
type CreateAccountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
}

type CreateAccountResponse struct {
	ID string `json:"id"`
}

type SetAccountStateRequest struct {
	Locked *bool `json:"locked" validate:"required"`
}

// TransferRequest is not validated. A missing destination or a non-positive
// amount is reported in the transfer result.
type TransferRequest struct {
	DestinationAccount string          `json:"destinationAccount"`
	Amount             decimal.Decimal `json:"amount"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		InitialAmount: req.Amount,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNegativeInitialAmount) {
			middleware.RespondWithError(c, http.StatusBadRequest, "Initial amount must not be negative")
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	c.Header("Location", c.Request.URL.Path+"/"+account.ID)
	c.JSON(http.StatusCreated, CreateAccountResponse{ID: account.ID})
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.queries.GetAccount(cqrs.GetAccountQuery{AccountID: c.Param("accountId")})
	if err != nil {
		respondWithLookupError(c, err, "Failed to get account")
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	err := h.commands.DeleteAccount(c.Request.Context(), cqrs.DeleteAccountCommand{
		AccountID: c.Param("accountId"),
	})
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotRemovable) {
			middleware.RespondWithError(c, http.StatusConflict, "Account must be locked and empty to be removed")
			return
		}
		respondWithLookupError(c, err, "Failed to delete account")
		return
	}

	c.Status(http.StatusOK)
}

func (h *AccountHandler) GetAccountState(c *gin.Context) {
	state, err := h.queries.GetAccountState(cqrs.GetAccountStateQuery{AccountID: c.Param("accountId")})
	if err != nil {
		respondWithLookupError(c, err, "Failed to get account state")
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *AccountHandler) SetAccountState(c *gin.Context) {
	var req SetAccountStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	state, err := h.commands.SetAccountState(c.Request.Context(), cqrs.SetAccountStateCommand{
		AccountID: c.Param("accountId"),
		Locked:    *req.Locked,
	})
	if err != nil {
		respondWithLookupError(c, err, "Failed to update account state")
		return
	}

	c.JSON(http.StatusOK, state)
}

// Transfer answers 404 for an unknown source before looking at the body.
func (h *AccountHandler) Transfer(c *gin.Context) {
	sourceID := c.Param("accountId")
	if _, err := h.queries.GetAccount(cqrs.GetAccountQuery{AccountID: sourceID}); err != nil {
		respondWithLookupError(c, err, "Failed to transfer")
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.commands.Transfer(c.Request.Context(), cqrs.TransferCommand{
		SourceAccountID:      sourceID,
		DestinationAccountID: req.DestinationAccount,
		Amount:               req.Amount,
	})
	if err != nil {
		respondWithLookupError(c, err, "Failed to transfer")
		return
	}

	c.JSON(http.StatusOK, result)
}

func respondWithLookupError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, repository.ErrAccountNotFound) {
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
		return
	}
	middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
}
