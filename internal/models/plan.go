package models

// Периодичность списаний.
const (
	BillingMonthly = "MONTHLY"
	BillingAnnual  = "ANNUAL"
)

// Plan описывает тарифный план. Каталог планов локальный и является
// источником истины по ценам: цены из каталога шлюза не используются.
type Plan struct {
	ID               string `json:"planType"`
	Name             string `json:"planName"`
	PriceAmount      int    `json:"price"` // в минимальных единицах валюты
	Currency         string `json:"currency"`
	BillingFrequency string `json:"billingFrequency"`
}

var plans = map[string]Plan{
	"pro-monthly": {
		ID:               "pro-monthly",
		Name:             "Pro Monthly",
		PriceAmount:      299,
		Currency:         "GBP",
		BillingFrequency: BillingMonthly,
	},
	"pro-annual": {
		ID:               "pro-annual",
		Name:             "Pro Annual",
		PriceAmount:      2999,
		Currency:         "GBP",
		BillingFrequency: BillingAnnual,
	},
	"business-monthly": {
		ID:               "business-monthly",
		Name:             "Business Monthly",
		PriceAmount:      999,
		Currency:         "GBP",
		BillingFrequency: BillingMonthly,
	},
	"business-annual": {
		ID:               "business-annual",
		Name:             "Business Annual",
		PriceAmount:      9999,
		Currency:         "GBP",
		BillingFrequency: BillingAnnual,
	},
}

// PlanByID возвращает план по идентификатору.
func PlanByID(id string) (Plan, bool) {
	plan, ok := plans[id]
	return plan, ok
}
