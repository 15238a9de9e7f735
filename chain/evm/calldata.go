package evm

import (
	"strings"

	"github.com/crytic/abirunner/execution/valuegeneration"
	"github.com/crytic/abirunner/schema"
	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// abiTypeNames maps schema parameter types onto their canonical ABI type names.
var abiTypeNames = map[schema.ParamType]string{
	schema.ParamTypeAddress: "address",
	schema.ParamTypeInteger: "uint256",
	schema.ParamTypeString:  "string",
	schema.ParamTypeBoolean: "bool",
}

// MethodSignature returns the canonical signature of a method called with the provided arguments, e.g.
// "transfer(address,uint256)".
func MethodSignature(method string, args valuegeneration.InvocationArgs) (string, error) {
	typeNames := make([]string, len(args))
	for i, arg := range args {
		name, ok := abiTypeNames[arg.Type]
		if !ok {
			return "", errors.Errorf("argument %q has no ABI representation", arg.Name)
		}
		typeNames[i] = name
	}
	return method + "(" + strings.Join(typeNames, ",") + ")", nil
}

// EncodeCall builds the calldata for a method call: the 4-byte selector followed by the ABI-encoded arguments.
func EncodeCall(method string, args valuegeneration.InvocationArgs) ([]byte, error) {
	signature, err := MethodSignature(method, args)
	if err != nil {
		return nil, err
	}

	arguments := make(abi.Arguments, len(args))
	values := make([]any, len(args))
	for i, arg := range args {
		abiType, err := abi.NewType(abiTypeNames[arg.Type], "", nil)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		arguments[i] = abi.Argument{Name: arg.Name, Type: abiType}

		values[i], err = abiValue(arg)
		if err != nil {
			return nil, err
		}
	}

	packed, err := arguments.Pack(values...)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to encode arguments of %s", signature)
	}

	selector := crypto.Keccak256([]byte(signature))[:4]
	return append(selector, packed...), nil
}

// abiValue converts a synthesized argument into the Go value the ABI encoder expects for its type.
func abiValue(arg valuegeneration.Argument) (any, error) {
	switch arg.Type {
	case schema.ParamTypeAddress:
		s, ok := arg.Value.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, errors.Errorf("argument %q is not a hex address: %v", arg.Name, arg.Value)
		}
		return common.HexToAddress(s), nil
	case schema.ParamTypeInteger:
		v, ok := arg.Value.(*uint256.Int)
		if !ok || v == nil {
			return nil, errors.Errorf("argument %q is not an integer: %v", arg.Name, arg.Value)
		}
		return v.ToBig(), nil
	case schema.ParamTypeString:
		s, ok := arg.Value.(string)
		if !ok {
			return nil, errors.Errorf("argument %q is not a string: %v", arg.Name, arg.Value)
		}
		return s, nil
	case schema.ParamTypeBoolean:
		b, ok := arg.Value.(bool)
		if !ok {
			return nil, errors.Errorf("argument %q is not a boolean: %v", arg.Name, arg.Value)
		}
		return b, nil
	default:
		return nil, errors.Errorf("argument %q has no ABI representation", arg.Name)
	}
}
