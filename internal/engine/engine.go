// Package engine implements the matching engine's network-facing front:
// it accepts client connections, decodes command frames, and dispatches
// each to the addressed instrument's order book.
package engine

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"matchbook/internal/book"
	"matchbook/internal/cmap"
	"matchbook/internal/wire"
)

// Engine owns the two indexes every connection and every book shares: the
// instrument -> book map and the global order-id -> order map, plus the
// single output stream every book's events are serialized onto.
type Engine struct {
	books  *cmap.Map[string, *book.Book]
	orders *cmap.Map[book.OrderID, *book.Order]

	outMu sync.Mutex
	out   io.Writer

	log zerolog.Logger
}

// New builds an Engine that writes its output protocol to out.
func New(out io.Writer, log zerolog.Logger) *Engine {
	return &Engine{
		books:  cmap.New[string, *book.Book](cmap.HashString),
		orders: cmap.New[book.OrderID, *book.Order](cmap.HashUint32),
		out:    out,
		log:    log.With().Str("component", "engine").Logger(),
	}
}

// Serve accepts connections from listener until it returns an error
// (including from listener being closed), spawning one goroutine per
// connection. It never returns nil; a closed listener surfaces as the
// net.ErrClosed the caller is expected to treat as a clean shutdown.
func (e *Engine) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		e.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
		go e.handleConn(conn)
	}
}

func (e *Engine) handleConn(conn net.Conn) {
	defer conn.Close()

	frame := make([]byte, wire.FrameSize)
	for {
		if _, err := io.ReadFull(conn, frame); err != nil {
			if err != io.EOF {
				e.log.Warn().Err(err).Msg("error reading command frame")
			}
			return
		}

		inputTime := time.Now().UnixNano()
		cmd, err := wire.DecodeCommand(frame)
		if err != nil {
			e.log.Warn().Err(err).Msg("malformed command frame")
			continue
		}
		e.dispatch(cmd, inputTime)
	}
}

func (e *Engine) dispatch(cmd wire.Command, inputTime int64) {
	switch cmd.Kind {
	case wire.KindBuy:
		e.bookFor(cmd.Instrument).ProcessBuy(
			book.NewOrder(cmd.OrderID, book.Buy, cmd.Instrument, cmd.Price, cmd.Count, inputTime),
			e.orders, e.now, e)
	case wire.KindSell:
		e.bookFor(cmd.Instrument).ProcessSell(
			book.NewOrder(cmd.OrderID, book.Sell, cmd.Instrument, cmd.Price, cmd.Count, inputTime),
			e.orders, e.now, e)
	case wire.KindCancel:
		e.processCancel(cmd.OrderID, inputTime)
	}
}

func (e *Engine) processCancel(id book.OrderID, inputTime int64) {
	order, ok := e.orders.Get(id)
	if !ok {
		e.Canceled(id, false, inputTime, e.now())
		return
	}
	e.bookFor(order.Instrument).ProcessCancel(order, e.orders, e.now, e)
}

func (e *Engine) bookFor(instrument string) *book.Book {
	b, _ := e.books.GetOrPut(instrument, book.NewBook(instrument))
	return b
}

func (e *Engine) now() int64 {
	return time.Now().UnixNano()
}

// Added, Executed and Canceled implement book.Emitter, serializing every
// book's events onto the engine's single output stream.
func (e *Engine) Added(o book.Order) {
	e.write(wire.FormatAdded(o.Side, o.ID, o.Instrument, o.Price, o.Remaining, o.InputTime, o.BookTime))
}

func (e *Engine) Executed(x book.Execution) {
	e.write(wire.FormatExecuted(x))
}

func (e *Engine) Canceled(id book.OrderID, accepted bool, inputTime, now int64) {
	e.write(wire.FormatCanceled(id, accepted, inputTime, now))
}

func (e *Engine) write(line string) {
	e.outMu.Lock()
	defer e.outMu.Unlock()
	if _, err := io.WriteString(e.out, line); err != nil {
		e.log.Error().Err(err).Msg("failed writing output line")
	}
}
