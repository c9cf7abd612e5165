package paymentprovider

// CreateSubscriptionRequest запрос на создание подписки по тарифному плану.
type CreateSubscriptionRequest struct {
	PlanID         string `json:"plan_id"`
	TotalCount     int    `json:"total_count"`
	CustomerNotify int    `json:"customer_notify"`
}

// Subscription подписка на стороне провайдера.
type Subscription struct {
	ID        string `json:"id"`
	Entity    string `json:"entity,omitempty"`
	PlanID    string `json:"plan_id,omitempty"`
	Status    string `json:"status"`
	StartAt   int64  `json:"start_at,omitempty"`
	EndAt     int64  `json:"end_at,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// SubscriptionList страница списка подписок.
type SubscriptionList struct {
	Entity string         `json:"entity"`
	Count  int            `json:"count"`
	Items  []Subscription `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}
