package monitor

import "time"

type Status struct {
	Postgres  bool      `json:"postgres"`
	Redis     bool      `json:"redis"`
	Bolt      bool      `json:"bolt"`
	LastCheck time.Time `json:"last_check"`
}
