package transport

// ReminderRequest carries reminder fields for create and update calls.
// FireAt is RFC3339; State is only honored on update.
type ReminderRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FireAt      string `json:"fire_at"`
	State       string `json:"state"`
}

// PostponeRequest shifts a reminder's fire time forward by whole minutes.
type PostponeRequest struct {
	Minutes int `json:"minutes"`
}
