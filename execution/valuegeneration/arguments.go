package valuegeneration

import (
	"fmt"
	"strconv"

	"github.com/crytic/abirunner/schema"
	"github.com/holiman/uint256"
)

// Argument is a single synthesized call argument. Value holds a string for address and string parameters, a
// *uint256.Int for integers and a bool for booleans.
type Argument struct {
	Name  string
	Type  schema.ParamType
	Value any
}

// String renders the argument value the way it is sent to a chain client: integers in decimal, booleans as
// true/false.
func (a Argument) String() string {
	switch v := a.Value.(type) {
	case string:
		return v
	case *uint256.Int:
		if v == nil {
			return "0"
		}
		return v.Dec()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// InvocationArgs is the ordered list of arguments synthesized for one method invocation.
type InvocationArgs []Argument

// Get returns the argument with the provided name.
func (args InvocationArgs) Get(name string) (Argument, bool) {
	for _, arg := range args {
		if arg.Name == name {
			return arg, true
		}
	}
	return Argument{}, false
}

// Strings renders every argument value in order.
func (args InvocationArgs) Strings() []string {
	rendered := make([]string, len(args))
	for i, arg := range args {
		rendered[i] = arg.String()
	}
	return rendered
}
