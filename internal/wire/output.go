package wire

import (
	"fmt"
	"strconv"
	"strings"

	"matchbook/internal/book"
)

// LineKind identifies which of the four output line grammars a line is.
type LineKind byte

const (
	LineBuy    LineKind = 'B'
	LineSell   LineKind = 'S'
	LineExec   LineKind = 'E'
	LineCancel LineKind = 'X'
)

// OutputLine is one decoded line of engine output. Only the fields
// relevant to Kind are populated; InputTime and OutputTime are always ns.
type OutputLine struct {
	Kind LineKind

	OrderID    book.OrderID // Buy, Sell, Cancel
	Instrument string       // Buy, Sell
	Price      book.Price   // Buy, Sell, Exec (resting order's price)
	Count      book.Quantity

	RestingID book.OrderID // Exec
	NewID     book.OrderID // Exec
	ExecID    uint32       // Exec

	Accepted bool // Cancel

	InputTime  int64
	OutputTime int64
}

// FormatAdded renders a "B"/"S" rested line.
func FormatAdded(side book.Side, orderID book.OrderID, instrument string, price book.Price, count book.Quantity, inputTime, outputTime int64) string {
	kind := byte(LineBuy)
	if side == book.Sell {
		kind = byte(LineSell)
	}
	return fmt.Sprintf("%c %d %s %d %d %s %s\n", kind, orderID, instrument, price, count, formatTimestamp(inputTime), formatTimestamp(outputTime))
}

// FormatExecuted renders an "E" execution line.
func FormatExecuted(exec book.Execution) string {
	return fmt.Sprintf("E %d %d %d %d %d %s %s\n",
		exec.RestingID, exec.IncomingID, exec.ExecID, exec.Price, exec.Qty,
		formatTimestamp(exec.InputTime), formatTimestamp(exec.BookTime))
}

// FormatCanceled renders an "X" cancel-ack line.
func FormatCanceled(id book.OrderID, accepted bool, inputTime, outputTime int64) string {
	result := "R"
	if accepted {
		result = "A"
	}
	return fmt.Sprintf("X %d %s %s %s\n", id, result, formatTimestamp(inputTime), formatTimestamp(outputTime))
}

func formatTimestamp(ns int64) string {
	return strconv.FormatInt(ns, 10) + "ns"
}

// ParseLine parses one line of engine output. ok is false, with a nil
// error, for lines the oracle must silently ignore: comments ("#..."),
// blank lines, and stray "Got ..." echo lines the engine may print to its
// own stdout alongside the protocol stream.
func ParseLine(line string) (out OutputLine, ok bool, err error) {
	trimmed := strings.TrimRight(line, "\r\n")
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "Got ") {
		return OutputLine{}, false, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return OutputLine{}, false, nil
	}
	if len(fields[0]) != 1 {
		return OutputLine{}, false, fmt.Errorf("wire: output line kind %q is not a single character", fields[0])
	}

	out.Kind = LineKind(fields[0][0])
	var rest []string
	switch out.Kind {
	case LineBuy, LineSell:
		if len(fields) != 7 {
			return OutputLine{}, false, fmt.Errorf("wire: malformed %c line %q", out.Kind, line)
		}
		id, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return OutputLine{}, false, fmt.Errorf("wire: bad order id in %q: %w", line, err)
		}
		out.OrderID = book.OrderID(id)
		out.Instrument = fields[2]
		price, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return OutputLine{}, false, fmt.Errorf("wire: bad price in %q: %w", line, err)
		}
		out.Price = book.Price(price)
		count, err := strconv.ParseUint(fields[4], 10, 32)
		if err != nil {
			return OutputLine{}, false, fmt.Errorf("wire: bad count in %q: %w", line, err)
		}
		out.Count = book.Quantity(count)
		rest = fields[5:]

	case LineExec:
		if len(fields) != 8 {
			return OutputLine{}, false, fmt.Errorf("wire: malformed E line %q", line)
		}
		restingID, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return OutputLine{}, false, fmt.Errorf("wire: bad resting id in %q: %w", line, err)
		}
		out.RestingID = book.OrderID(restingID)
		newID, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return OutputLine{}, false, fmt.Errorf("wire: bad new id in %q: %w", line, err)
		}
		out.NewID = book.OrderID(newID)
		execID, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return OutputLine{}, false, fmt.Errorf("wire: bad exec id in %q: %w", line, err)
		}
		out.ExecID = uint32(execID)
		price, err := strconv.ParseUint(fields[4], 10, 32)
		if err != nil {
			return OutputLine{}, false, fmt.Errorf("wire: bad price in %q: %w", line, err)
		}
		out.Price = book.Price(price)
		count, err := strconv.ParseUint(fields[5], 10, 32)
		if err != nil {
			return OutputLine{}, false, fmt.Errorf("wire: bad count in %q: %w", line, err)
		}
		out.Count = book.Quantity(count)
		rest = fields[6:]

	case LineCancel:
		if len(fields) != 5 {
			return OutputLine{}, false, fmt.Errorf("wire: malformed X line %q", line)
		}
		id, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return OutputLine{}, false, fmt.Errorf("wire: bad order id in %q: %w", line, err)
		}
		out.OrderID = book.OrderID(id)
		switch fields[2] {
		case "A":
			out.Accepted = true
		case "R":
			out.Accepted = false
		default:
			return OutputLine{}, false, fmt.Errorf("wire: unknown cancel result %q in %q", fields[2], line)
		}
		rest = fields[3:]

	default:
		return OutputLine{}, false, fmt.Errorf("wire: unknown output line kind %q in %q", out.Kind, line)
	}

	inputTS, err := parseTimestamp(rest[0])
	if err != nil {
		return OutputLine{}, false, fmt.Errorf("wire: bad input timestamp in %q: %w", line, err)
	}
	outputTS, err := parseTimestamp(rest[1])
	if err != nil {
		return OutputLine{}, false, fmt.Errorf("wire: bad output timestamp in %q: %w", line, err)
	}
	out.InputTime = inputTS
	out.OutputTime = outputTS
	return out, true, nil
}

// parseTimestamp parses a timestamp token into nanoseconds. A bare
// integer is microseconds; "ns"/"us"/"ms" suffixes are explicit.
func parseTimestamp(tok string) (int64, error) {
	switch {
	case strings.HasSuffix(tok, "ns"):
		return strconv.ParseInt(tok[:len(tok)-2], 10, 64)
	case strings.HasSuffix(tok, "us"):
		v, err := strconv.ParseInt(tok[:len(tok)-2], 10, 64)
		if err != nil {
			return 0, err
		}
		return v * 1000, nil
	case strings.HasSuffix(tok, "ms"):
		v, err := strconv.ParseInt(tok[:len(tok)-2], 10, 64)
		if err != nil {
			return 0, err
		}
		return v * 1_000_000, nil
	default:
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return 0, err
		}
		return v * 1000, nil
	}
}
