package people

import (
	"encoding/json"
	"fmt"
	"os"
)

func nextID() int {
	return 7
}

func displayName(first string) string {
	return fmt.Sprintf("person %s", first)
}

func exportPerson(first string) {
	id := nextID()
	name := displayName(first)
	row, _ := json.Marshal(id)
	fmt.Println(name, string(row))
	os.Exit(0)
}

type Registry struct{}

func (r *Registry) known(first string) bool {
	return first != ""
}

func (r *Registry) Lookup(first string) string {
	if r.known(first) {
		return displayName(first)
	}
	return ""
}
