package panicif

import (
	"cmp"
	"fmt"
)

func True(b bool) {
	if b {
		panic("is true")
	}
}

func False(b bool) {
	if !b {
		panic("is false")
	}
}

func NotEqual[T comparable](a, b T) {
	if a != b {
		panic(fmt.Sprintf("%v != %v", a, b))
	}
}

func Equal[T comparable](a, b T) {
	if a == b {
		panic(fmt.Sprintf("%v == %v", a, b))
	}
}

func LessThan[T cmp.Ordered](a, b T) {
	if a < b {
		panic(fmt.Sprintf("%v < %v", a, b))
	}
}

func GreaterThanOrEqual[T cmp.Ordered](a, b T) {
	if a >= b {
		panic(fmt.Sprintf("%v >= %v", a, b))
	}
}

func NotNil(x any) {
	if x != nil {
		panic(x)
	}
}
