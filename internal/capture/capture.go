package capture

import (
	"bufio"
	"log"
	"net"
	"sync"
	"time"
)

// Line is one raw feed line received from an analysis source.
type Line struct {
	Source    string
	Text      string
	Timestamp time.Time
}

// Feed reads line-oriented climate feeds over TCP. Each source gets its own
// reader goroutine with automatic reconnection; lines from all sources fan
// into one channel.
type Feed struct {
	sources  []string
	conns    map[string]net.Conn
	lines    chan Line
	wg       sync.WaitGroup
	stopChan chan struct{}
	mu       sync.Mutex
}

const (
	reconnectDelay = 5 * time.Second
	readDeadline   = 2 * time.Second
	// A source silent for longer than this gets its connection recycled.
	idleTimeout = 3 * time.Second
)

// New creates a feed reader for the given source addresses.
func New(sources []string) *Feed {
	return &Feed{
		sources:  sources,
		conns:    make(map[string]net.Conn),
		lines:    make(chan Line, 1000),
		stopChan: make(chan struct{}),
	}
}

// Start begins reading from all sources.
func (f *Feed) Start() {
	for _, source := range f.sources {
		f.wg.Add(1)
		go f.connectToSource(source)
	}
}

// Stop closes all connections and waits for the readers to exit. The lines
// channel is closed once every reader is done.
func (f *Feed) Stop() {
	close(f.stopChan)
	f.mu.Lock()
	for _, conn := range f.conns {
		conn.Close()
	}
	f.mu.Unlock()
	f.wg.Wait()
	close(f.lines)
}

// Lines returns the channel carrying feed lines from all sources.
func (f *Feed) Lines() <-chan Line {
	return f.lines
}

func (f *Feed) connectToSource(source string) {
	defer f.wg.Done()

	connected := false
	var disconnectTime time.Time

	for {
		select {
		case <-f.stopChan:
			return
		default:
		}

		conn, err := net.Dial("tcp", source)
		if err != nil {
			if connected {
				disconnectTime = time.Now()
				connected = false
			}
			time.Sleep(reconnectDelay)
			continue
		}

		configureKeepalive(conn, source)

		if !connected {
			if !disconnectTime.IsZero() {
				log.Printf("Reconnected to %s after %s", source, time.Since(disconnectTime).Round(time.Second))
				disconnectTime = time.Time{}
			} else {
				log.Printf("Connected to %s", source)
			}
			connected = true
		}

		f.mu.Lock()
		f.conns[source] = conn
		f.mu.Unlock()

		f.readLines(source, conn)

		f.mu.Lock()
		delete(f.conns, source)
		f.mu.Unlock()

		if connected {
			disconnectTime = time.Now()
			connected = false
		}
	}
}

func configureKeepalive(conn net.Conn, source string) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		log.Printf("Warning: failed to set keepalive for %s: %v", source, err)
	}
	if err := tcpConn.SetKeepAlivePeriod(2 * time.Second); err != nil {
		log.Printf("Warning: failed to set keepalive period for %s: %v", source, err)
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		log.Printf("Warning: failed to set no delay for %s: %v", source, err)
	}
}

// readLines consumes lines from one connection until it fails or the feed
// stops. Returning hands control back to the reconnect loop.
func (f *Feed) readLines(source string, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	lastLineTime := time.Now()

	for {
		select {
		case <-f.stopChan:
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			log.Printf("Warning: failed to set read deadline for %s: %v", source, err)
		}

		text, err := reader.ReadString('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if time.Since(lastLineTime) > idleTimeout {
					return
				}
				continue
			}
			return
		}

		lastLineTime = time.Now()

		select {
		case f.lines <- Line{Source: source, Text: text, Timestamp: time.Now()}:
		case <-f.stopChan:
			return
		}
	}
}
