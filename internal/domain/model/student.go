package model

// Student is owned by the account service; billing only needs to know it exists.
type Student struct {
	ID    string
	Email string
	Name  string
}
