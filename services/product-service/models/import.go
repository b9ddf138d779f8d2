package models

// Field is one loosely typed payload value. Raw holds a JSON string's
// contents or a JSON number's literal text.
type Field struct {
	Raw     string
	Present bool
}

// ImportCandidate is a queue payload before validation.
type ImportCandidate struct {
	Title       Field
	Description Field
	Price       Field
	Count       Field
}

// NotificationEvent is published once per committed product.
type NotificationEvent struct {
	Event       string  `json:"event"`
	ProductID   string  `json:"productId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Count       int     `json:"count"`
}

const EventProductCreated = "product.created"
