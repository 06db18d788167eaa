package entity

import "strconv"

// Actor is the explicit caller of a core operation.
// It is built by the transport layer from verified credentials and passed as a
// parameter; the domain never reads caller identity from ambient state.
type Actor struct {
	UserID     string
	CustomerID int64
	Admin      bool
}

// SystemActor is used by seeders and background jobs.
func SystemActor() Actor {
	return Actor{UserID: "system", Admin: true}
}

// ID returns the identifier recorded in audit trails.
func (a Actor) ID() string {
	if a.UserID != "" {
		return a.UserID
	}
	if a.CustomerID != 0 {
		return "customer:" + strconv.FormatInt(a.CustomerID, 10)
	}
	return "anonymous"
}

// Owns reports whether the actor may act on a customer's records.
func (a Actor) Owns(customerID int64) bool {
	return a.Admin || (a.CustomerID != 0 && a.CustomerID == customerID)
}
