package models

import "time"

type Base struct {
	ID        int
	CreatedAt time.Time
}

type Person struct {
	Base
	Name string
}

type Store interface {
	Find(id int) (*Person, error)
}

var DefaultPerson = &Person{Name: "ada"}

func NewPerson(name string) *Person {
	return &Person{Name: name}
}
