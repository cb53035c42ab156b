package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-ledger/internal/middleware"
	"github.com/sjperalta/fintera-ledger/internal/services"
)

type AccountHandler struct {
	accountService *services.AccountService
}

func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// @Summary List Accounts
// @Tags Accounts
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param type query string false "Account type"
// @Router /accounts [get]
func (h *AccountHandler) Index(c *gin.Context) {
	query := listQuery(c, "type", "category", "active")
	accounts, total, err := h.accountService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts, "pagination": pagination(query, total)})
}

// @Summary Get Account
// @Tags Accounts
// @Router /accounts/{account_id} [get]
func (h *AccountHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "account_id")
	if !ok {
		return
	}
	account, err := h.accountService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// @Summary Create Account
// @Tags Accounts
// @Router /accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var in services.AccountInput
	if err := BindNestedOrFlat(c, "account", &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	account, err := h.accountService.Create(c.Request.Context(), middleware.GetUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// @Summary Update Account
// @Tags Accounts
// @Router /accounts/{account_id} [put]
func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "account_id")
	if !ok {
		return
	}
	var in services.AccountInput
	if err := BindNestedOrFlat(c, "account", &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	account, err := h.accountService.Update(c.Request.Context(), middleware.GetUserID(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// @Summary Delete Account
// @Tags Accounts
// @Router /accounts/{account_id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "account_id")
	if !ok {
		return
	}
	if err := h.accountService.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

// Import loads a chart of accounts from an uploaded XLSX workbook
// @Summary Import Accounts
// @Tags Accounts
// @Accept multipart/form-data
// @Router /accounts/import [post]
func (h *AccountHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	result, err := h.accountService.ImportXLSX(c.Request.Context(), middleware.GetUserID(c), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// @Summary Trial Balance
// @Tags Accounts
// @Router /accounts/trial-balance [get]
func (h *AccountHandler) TrialBalance(c *gin.Context) {
	tb, err := h.accountService.TrialBalance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trial_balance": tb})
}
