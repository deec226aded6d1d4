package models

// Requests for the forecasting and training HTTP endpoints.

type ForecastRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1d" validate:"oneof=1s 1m 5m 1d"`
	RunID  string `query:"run_id" json:"run_id" validate:"omitempty,uuid"`
}

// InvocationRequest is the body of POST /invocations. Bars, when given,
// replace the feature-store lookup.
type InvocationRequest struct {
	Symbol string   `json:"symbol" validate:"required"`
	TF     string   `json:"tf" default:"1d" validate:"oneof=1s 1m 5m 1d"`
	Bars   []Candle `json:"bars" validate:"omitempty,dive"`
}

type TrainingRequest struct {
	Symbols   []string `json:"symbols" validate:"required,min=1,dive,required"`
	TF        string   `json:"tf" default:"1d" validate:"oneof=1s 1m 5m 1d"`
	Lookback  int      `json:"lookback" default:"10" validate:"gte=1,lte=512"`
	Epochs    int      `json:"epochs" default:"100" validate:"gte=1,lte=10000"`
	BatchSize int      `json:"batch_size" default:"64" validate:"gte=1,lte=4096"`
	Shuffle   string   `json:"shuffle" default:"shuffle" validate:"oneof=sequential shuffle"`
	Seed      int64    `json:"seed" default:"42"`
}

type RunRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}
