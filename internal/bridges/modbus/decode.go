package modbus

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nerrad567/gray-logic-energy/internal/bridges"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// bytesPerRegister is the width of one Modbus holding register.
const bytesPerRegister = 2

// validateField checks a column's register layout before any wire
// traffic. Only single registers and two-register 32-bit values are
// decodable; anything else is a per-column error, recorded as a marker
// so the rest of the read still proceeds.
func validateField(field *schema.ModbusField) error {
	switch field.RegisterCount {
	case 1:
		return nil
	case 2:
		switch field.Format {
		case schema.WireFloat32, schema.WireUint32:
			return nil
		case "":
			return fmt.Errorf("%w: two-register field needs a format", bridges.ErrDecode)
		default:
			return fmt.Errorf("%w: unknown wire format %q", bridges.ErrDecode, field.Format)
		}
	default:
		return fmt.Errorf("%w: unsupported register span %d", bridges.ErrDecode, field.RegisterCount)
	}
}

// decodeRegisters turns a raw register payload into a column value.
//
// One register is its raw 16-bit value. Two registers are packed
// big-endian into a 32-bit word and reinterpreted per the column's wire
// format. Either way the value is divided by the column's scale when
// the scale is greater than 1; meters express fixed-point quantities
// that way (register 1234 at scale 10 is 123.4).
func decodeRegisters(payload []byte, field *schema.ModbusField) (any, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}
	if len(payload) != int(field.RegisterCount)*bytesPerRegister {
		return nil, fmt.Errorf("%w: got %d payload bytes for %d registers",
			bridges.ErrDecode, len(payload), field.RegisterCount)
	}

	if field.RegisterCount == 1 {
		raw := binary.BigEndian.Uint16(payload)
		if field.Scale > 1 {
			return float64(raw) / field.Scale, nil
		}
		return int64(raw), nil
	}

	packed := binary.BigEndian.Uint32(payload)
	switch field.Format {
	case schema.WireFloat32:
		value := float64(math.Float32frombits(packed))
		if field.Scale > 1 {
			return value / field.Scale, nil
		}
		return value, nil
	case schema.WireUint32:
		if field.Scale > 1 {
			return float64(packed) / field.Scale, nil
		}
		return int64(packed), nil
	default:
		// validateField only admits the two formats above.
		return nil, fmt.Errorf("%w: unknown wire format %q", bridges.ErrDecode, field.Format)
	}
}
