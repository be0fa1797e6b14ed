//go:build !race

package tokens

func passwordHashCost() int {
	return 14
}
