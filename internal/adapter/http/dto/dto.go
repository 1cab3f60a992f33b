package dto

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
	Age      *int   `json:"age,omitempty" binding:"omitempty,gte=0,lte=150"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateWalletRequest is the request body for wallet creation.
// InitialBalance defaults to zero and Currency to the canonical currency.
type CreateWalletRequest struct {
	UserID         string  `json:"user_id" binding:"required,uuid"`
	InitialBalance *Amount `json:"initial_balance,omitempty"`
	Currency       string  `json:"currency,omitempty" binding:"omitempty,currency_code"`
}

// WalletResponse is the response body for a created wallet.
type WalletResponse struct {
	Message            string  `json:"message"`
	WalletID           string  `json:"wallet_id"`
	UserID             string  `json:"user_id"`
	Balance            float64 `json:"balance"`
	Currency           string  `json:"currency"`
	RecentTransactions int     `json:"recent_transactions"`
}

// AmountRequest is the request body for fund and withdraw.
type AmountRequest struct {
	Amount   *Amount `json:"amount" binding:"required"`
	Currency string  `json:"currency" binding:"required,currency_code"`
}

// MutationResponse reports the balance after a fund or withdraw.
type MutationResponse struct {
	Message string  `json:"message"`
	Balance float64 `json:"balance"`
}

// ConvertRequest is the request body for a conversion quote.
// An empty to_currency means the canonical currency.
type ConvertRequest struct {
	FromCurrency string  `json:"from_currency" binding:"required,currency_code"`
	ToCurrency   string  `json:"to_currency,omitempty" binding:"omitempty,currency_code"`
	Amount       *Amount `json:"amount" binding:"required"`
}

// ConvertResponse is the quoted amount.
type ConvertResponse struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}
