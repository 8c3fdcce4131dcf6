package pathfind

import "fmt"

// ParseRoomName converts a room name like "W7N4" or "E120S3" to its map
// position. Quadrant letters are case-insensitive; coordinates outside
// [0,127] are rejected.
func ParseRoomName(name string) (MapPosition, error) {
	horizAxis, horizVal, rest, err := parseAxis(name)
	if err != nil {
		return MapPosition{}, fmt.Errorf("parsing room name %q: %w", name, err)
	}
	vertAxis, vertVal, rest, err := parseAxis(rest)
	if err != nil {
		return MapPosition{}, fmt.Errorf("parsing room name %q: %w", name, err)
	}
	if rest != "" {
		return MapPosition{}, fmt.Errorf("parsing room name %q: trailing %q", name, rest)
	}

	xx, err := axisCoord(horizAxis, horizVal, 'W', 'E')
	if err != nil {
		return MapPosition{}, fmt.Errorf("parsing room name %q: %w", name, err)
	}
	yy, err := axisCoord(vertAxis, vertVal, 'N', 'S')
	if err != nil {
		return MapPosition{}, fmt.Errorf("parsing room name %q: %w", name, err)
	}
	return MapPosition{XX: xx, YY: yy}, nil
}

// FormatRoomName converts a map position back to its room name.
func FormatRoomName(pos MapPosition) string {
	horizAxis, horizVal := 'W', 127-int(pos.XX)
	if pos.XX > 127 {
		horizAxis, horizVal = 'E', int(pos.XX)-128
	}
	vertAxis, vertVal := 'N', 127-int(pos.YY)
	if pos.YY > 127 {
		vertAxis, vertVal = 'S', int(pos.YY)-128
	}
	return fmt.Sprintf("%c%d%c%d", horizAxis, horizVal, vertAxis, vertVal)
}

// parseAxis consumes one quadrant letter and its decimal value.
func parseAxis(s string) (byte, int, string, error) {
	if len(s) < 2 {
		return 0, 0, "", fmt.Errorf("truncated axis")
	}
	axis := s[0]
	if axis >= 'a' && axis <= 'z' {
		axis -= 'a' - 'A'
	}
	value := 0
	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		value = value*10 + int(s[i]-'0')
		if value > 127 {
			return 0, 0, "", fmt.Errorf("axis %c coordinate out of range", axis)
		}
		i++
	}
	if i == 1 {
		return 0, 0, "", fmt.Errorf("axis %c missing coordinate", axis)
	}
	return axis, value, s[i:], nil
}

func axisCoord(axis byte, value int, low, high byte) (uint8, error) {
	switch axis {
	case low:
		return uint8(127 - value), nil
	case high:
		return uint8(128 + value), nil
	}
	return 0, fmt.Errorf("unexpected axis letter %c", axis)
}
