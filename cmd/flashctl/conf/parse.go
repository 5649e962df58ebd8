package conf

import (
	"fmt"
	"strconv"
	"strings"
)

//ParseAddr parses a decimal or 0x prefixed hexadecimal address
func ParseAddr(str string) (uint64, error) {
	addr, err := strconv.ParseUint(strings.TrimSpace(str), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("Could not parse address %q: %w", str, err)
	}
	return addr, nil
}

//ParseByte parses a decimal or 0x prefixed hexadecimal byte value
func ParseByte(str string) (byte, error) {
	val, err := strconv.ParseUint(strings.TrimSpace(str), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("Could not parse byte value %q: %w", str, err)
	}
	return byte(val), nil
}

//ParseCount parses a non-negative byte count given either as a number or a
// human IEC value
func ParseCount(str string) (int64, error) {
	count, err := strconv.ParseInt(strings.TrimSpace(str), 0, 64)
	if err != nil {
		var c Capacity
		if capErr := c.Set(str); capErr != nil {
			return 0, fmt.Errorf("Could not parse byte count %q: %w", str, capErr)
		}
		count = int64(c)
	}
	if count < 0 {
		return 0, fmt.Errorf("Byte count cannot be negative, %q was provided", str)
	}
	return count, nil
}

//ParseAddrList parses a comma separated list of addresses
func ParseAddrList(str string) ([]uint64, error) {
	if strings.TrimSpace(str) == "" {
		return nil, nil
	}
	parts := strings.Split(str, ",")
	addrs := make([]uint64, 0, len(parts))
	for _, part := range parts {
		addr, err := ParseAddr(part)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
