package contracts

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrArity is returned when the number of values does not match the ABI inputs.
var ErrArity = errors.New("argument count does not match ABI")

// CoerceArgs converts resolved values into the Go types the ABI packer expects
// for inputs. Values may be strings, addresses, byte slices, bools or integers.
func CoerceArgs(inputs abi.Arguments, values []any) ([]any, error) {
	if len(inputs) != len(values) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrArity, len(inputs), len(values))
	}

	out := make([]any, len(values))
	for i, input := range inputs {
		v, err := coerce(input.Type, values[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = "#" + strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		out[i] = v
	}

	return out, nil
}

func coerce(t abi.Type, value any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return toAddress(value)
	case abi.IntTy, abi.UintTy:
		return toInteger(t, value)
	case abi.BoolTy:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(v))
		}
	case abi.StringTy:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case abi.BytesTy:
		return toBytes(value)
	case abi.FixedBytesTy:
		b, err := toBytes(value)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	default:
		if value != nil && reflect.TypeOf(value) == t.GetType() {
			return value, nil
		}
		return nil, fmt.Errorf("unsupported ABI type %s", t.String())
	}

	return nil, fmt.Errorf("cannot use %T", value)
}

func toAddress(value any) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		if v != nil {
			return *v, nil
		}
	case string:
		s := strings.TrimSpace(v)
		if common.IsHexAddress(s) {
			return common.HexToAddress(s), nil
		}
		return common.Address{}, fmt.Errorf("invalid address %q", v)
	}

	return common.Address{}, fmt.Errorf("cannot use %T as address", value)
}

func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case hexutil.Bytes:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" || s == "0x" {
			return []byte{}, nil
		}
		if !strings.HasPrefix(s, "0x") {
			s = "0x" + s
		}
		return hexutil.Decode(s)
	}

	return nil, fmt.Errorf("cannot use %T as bytes", value)
}

func toBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v != nil {
			return new(big.Int).Set(v), nil
		}
	case string:
		n, ok := new(big.Int).SetString(strings.ReplaceAll(strings.TrimSpace(v), "_", ""), 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil
	}

	return nil, fmt.Errorf("cannot use %T as integer", value)
}

// toInteger range checks value against t and returns the packer's Go type:
// native ints for 8, 16, 32 and 64 bits, *big.Int otherwise.
func toInteger(t abi.Type, value any) (any, error) {
	n, err := toBigInt(value)
	if err != nil {
		return nil, err
	}

	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for uint%d", n, t.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		floor := new(big.Int).Neg(limit)
		if n.Cmp(floor) < 0 || n.Cmp(limit) >= 0 {
			return nil, fmt.Errorf("%s out of range for int%d", n, t.Size)
		}
	}

	goType := t.GetType()
	if goType.Kind() == reflect.Ptr {
		return n, nil
	}

	v := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		v.SetUint(n.Uint64())
	} else {
		v.SetInt(n.Int64())
	}

	return v.Interface(), nil
}
