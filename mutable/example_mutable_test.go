package mutable_test

import (
	"fmt"

	"pipelined.dev/graph/mutable"
)

type delayLine struct {
	mutable.Context
	length int
}

func (v *delayLine) resize(length int) mutable.Mutation {
	return v.Context.Mutate(func() {
		v.length = length
	})
}

func Example_mutation() {
	// create new mutable component
	component := &delayLine{
		Context: mutable.Mutable(),
	}
	fmt.Println(component.length)

	// create new mutation
	mutation := component.resize(10)
	fmt.Println(component.length)

	// apply mutation
	mutation.Apply()
	fmt.Println(component.length)

	// Output:
	// 0
	// 0
	// 10
}
