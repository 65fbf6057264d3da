package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gonum.org/v1/gonum/stat"

	"github.com/khaledhikmat/scanbill-go/billing"
	"github.com/khaledhikmat/scanbill-go/cart"
	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/delivery"
	"github.com/khaledhikmat/scanbill-go/service/inference"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

const (
	scannerProc     = "scanner"
	latencyWindow   = 512
	deliveryTimeout = 30 * time.Second
)

type Option func(*Scanner)

func WithClock(c clock.Clock) Option {
	return func(s *Scanner) { s.clock = c }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scanner) { s.tracer = tp.Tracer("github.com/khaledhikmat/scanbill-go/pipeline") }
}

func WithAuditor(a *Auditor) Option {
	return func(s *Scanner) { s.auditor = a }
}

func WithCart(c *cart.Aggregator) Option {
	return func(s *Scanner) { s.cart = c }
}

// Scanner turns a frame stream into cart updates for one checkout lane. All
// state other than the cart is owned by the goroutine running Run; callers
// interact through commands.
type Scanner struct {
	svcs     ServicesFactory
	source   model.Source
	detector inference.IService

	clock   clock.Clock
	tracer  trace.Tracer
	auditor *Auditor

	cart      *cart.Aggregator
	sampler   *FrameSampler
	gate      *CooldownGate
	threshold float64
	taxRate   decimal.Decimal

	errorStream chan interface{}
	statsStream chan interface{}
	events      chan model.Event
	commands    chan Command
	results     chan detectResult
	deliveries  chan deliveryResult
	done        chan struct{}

	runCtx       context.Context
	session      string
	frames       <-chan model.Frame
	capturing    bool
	generation   uint64
	dispatchSeq  uint64
	latestSeq    uint64
	inFlight     bool
	detectCancel context.CancelFunc

	cartVersion uint64
	openBill    *model.Bill
	billVersion uint64
	sending     bool

	startTime time.Time
	stats     model.ScannerStats
	latencies []float64
}

func NewScanner(svcs ServicesFactory, source model.Source, errorStream chan interface{}, statsStream chan interface{}, opts ...Option) *Scanner {
	cfg := svcs.CfgSvc

	bufferSize := cfg.GetEventBufferSize()
	if bufferSize <= 0 {
		bufferSize = 100
	}

	s := &Scanner{
		svcs:        svcs,
		source:      source,
		detector:    inference.NewBoundary(svcs.DetectorSvc),
		clock:       clock.New(),
		tracer:      noop.NewTracerProvider().Tracer(""),
		sampler:     NewFrameSampler(time.Duration(cfg.GetSampleIntervalMs()) * time.Millisecond),
		gate:        NewCooldownGate(time.Duration(cfg.GetCooldownMs())*time.Millisecond, cfg.GetCooldownScope()),
		threshold:   cfg.GetAcceptThreshold(),
		taxRate:     cfg.GetTaxRate(),
		errorStream: errorStream,
		statsStream: statsStream,
		events:      make(chan model.Event, bufferSize),
		commands:    make(chan Command),
		results:     make(chan detectResult, 1),
		deliveries:  make(chan deliveryResult, 1),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cart == nil {
		s.cart = cart.New()
	}

	return s
}

// Events delivers cart and bill notifications, one per change. The control
// goroutine blocks while the buffer is full, so a caller running the scanner
// must keep reading. It is closed when Run returns.
func (s *Scanner) Events() <-chan model.Event {
	return s.events
}

// Snapshot returns the current cart lines without going through the control
// goroutine.
func (s *Scanner) Snapshot() []model.CartLine {
	return s.cart.Snapshot()
}

// Done is closed when Run returns.
func (s *Scanner) Done() <-chan struct{} {
	return s.done
}

// Run starts capture and processes frames, detector results, deliveries and
// commands until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) error {
	defer close(s.done)
	defer close(s.events)

	s.runCtx = ctx
	s.startTime = s.clock.Now()

	lgr.Logger.Info("scanner starting...",
		slog.String("source", s.source.Name),
		slog.String("detector", s.detector.Name()),
		slog.Float64("threshold", s.threshold),
		slog.Int("cooldownMs", s.svcs.CfgSvc.GetCooldownMs()),
		slog.String("cooldownScope", s.svcs.CfgSvc.GetCooldownScope()),
		slog.Int("sampleIntervalMs", s.svcs.CfgSvc.GetSampleIntervalMs()),
	)

	if err := s.startCapture(); err != nil {
		return fmt.Errorf("error starting capture: %w", err)
	}

	period := time.Duration(s.svcs.CfgSvc.GetStatsPeriodicTimeout()) * time.Second
	if period <= 0 {
		period = 30 * time.Second
	}
	ticker := s.clock.Ticker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Info("scanner context cancelled", slog.String("source", s.source.Name))
			s.shutdown()
			return nil

		case frame, ok := <-s.frames:
			if !ok {
				s.captureEnded()
				continue
			}
			s.onFrame(frame)

		case res := <-s.results:
			s.onResult(res)

		case res := <-s.deliveries:
			s.onDelivery(res)

		case cmd := <-s.commands:
			cmd(s)

		case <-ticker.C:
			s.publishStats()
		}
	}
}

// Do runs cmd on the control goroutine and waits for it to finish.
func (s *Scanner) Do(ctx context.Context, cmd Command) error {
	finished := make(chan struct{})
	wrapped := func(s *Scanner) {
		defer close(finished)
		cmd(s)
	}

	select {
	case s.commands <- wrapped:
	case <-s.done:
		return ErrScannerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetQuantity overwrites a line's quantity. Zero or less removes the line;
// unknown ids are ignored.
func (s *Scanner) SetQuantity(ctx context.Context, id string, quantity int) error {
	return s.Do(ctx, func(s *Scanner) { s.setQuantity(id, quantity) })
}

// Remove deletes a line; unknown ids are ignored.
func (s *Scanner) Remove(ctx context.Context, id string) error {
	return s.Do(ctx, func(s *Scanner) { s.remove(id) })
}

// GenerateBill freezes the cart into a bill. The cart is left untouched.
func (s *Scanner) GenerateBill(ctx context.Context) (model.Bill, error) {
	var bill model.Bill
	var err error
	if doErr := s.Do(ctx, func(s *Scanner) { bill, err = s.generateBill() }); doErr != nil {
		return model.Bill{}, doErr
	}
	return bill, err
}

// SendBill starts delivering the open bill to address, generating one first
// if the cart changed since the last bill. The outcome arrives as a billSent
// or billFailed event.
func (s *Scanner) SendBill(ctx context.Context, address string) error {
	var err error
	if doErr := s.Do(ctx, func(s *Scanner) { err = s.sendBill(address) }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Scanner) StopCapture(ctx context.Context) error {
	return s.Do(ctx, func(s *Scanner) { s.stopCapture() })
}

func (s *Scanner) StartCapture(ctx context.Context) error {
	var err error
	if doErr := s.Do(ctx, func(s *Scanner) { err = s.startCapture() }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Scanner) Stats(ctx context.Context) (model.ScannerStats, error) {
	var stats model.ScannerStats
	if err := s.Do(ctx, func(s *Scanner) { stats = s.currentStats() }); err != nil {
		return model.ScannerStats{}, err
	}
	return stats, nil
}

func (s *Scanner) startCapture() error {
	if s.capturing {
		return nil
	}

	frames, err := s.svcs.CaptureSvc.Start(s.runCtx)
	if err != nil {
		return err
	}

	s.frames = frames
	s.capturing = true
	s.session = uuid.NewString()
	s.newGeneration()

	lgr.Logger.Info("capture started",
		slog.String("source", s.source.Name),
		slog.String("session", s.session),
		slog.Uint64("generation", s.generation),
	)
	return nil
}

func (s *Scanner) stopCapture() {
	if s.capturing {
		if err := s.svcs.CaptureSvc.Stop(); err != nil {
			s.reportError(err, map[string]interface{}{"source": s.source.Name}, "error stopping capture")
		}
	}

	s.frames = nil
	s.capturing = false
	s.newGeneration()

	lgr.Logger.Info("capture stopped",
		slog.String("source", s.source.Name),
		slog.Uint64("generation", s.generation),
	)
}

func (s *Scanner) captureEnded() {
	err := s.svcs.CaptureSvc.Err()
	_ = s.svcs.CaptureSvc.Stop()
	s.frames = nil
	s.capturing = false
	s.newGeneration()

	if err != nil {
		s.stats.Errors++
		s.reportError(err, map[string]interface{}{"source": s.source.Name}, "capture ended")
		return
	}
	lgr.Logger.Info("capture ended", slog.String("source", s.source.Name))
}

// newGeneration invalidates any in-flight detector result and forgets the
// sampling and cooldown history.
func (s *Scanner) newGeneration() {
	s.generation++
	s.sampler.Reset()
	s.gate.Reset()
	if s.detectCancel != nil {
		s.detectCancel()
		s.detectCancel = nil
	}
}

func (s *Scanner) onFrame(frame model.Frame) {
	s.stats.Frames++
	if !s.sampler.Accept(frame.Timestamp) {
		return
	}
	s.stats.Sampled++

	if s.inFlight {
		s.stats.Busy++
		return
	}
	s.dispatch(frame)
}

func (s *Scanner) dispatch(frame model.Frame) {
	s.dispatchSeq++
	s.latestSeq = s.dispatchSeq
	s.inFlight = true
	s.stats.Dispatched++

	ctx, cancel := context.WithCancel(s.runCtx)
	s.detectCancel = cancel

	seq, generation, session := s.dispatchSeq, s.generation, s.session

	go func() {
		defer cancel()

		ctx, span := s.tracer.Start(ctx, "scanner.detect", trace.WithAttributes(
			attribute.String("scanner.session", session),
			attribute.String("detector", s.detector.Name()),
			attribute.Int64("frame.seq", int64(frame.Seq)),
			attribute.Int64("dispatch.seq", int64(seq)),
		))
		defer span.End()

		start := s.clock.Now()
		detections, err := s.detect(ctx, frame)
		latency := s.clock.Since(start)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("detections", len(detections)))

		s.results <- detectResult{
			seq:        seq,
			generation: generation,
			frameSeq:   frame.Seq,
			timestamp:  frame.Timestamp,
			detections: detections,
			latency:    latency,
			err:        err,
		}
	}()
}

func (s *Scanner) detect(ctx context.Context, frame model.Frame) (detections []model.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return s.detector.Detect(ctx, frame)
}

func (s *Scanner) onResult(res detectResult) {
	s.inFlight = false
	s.detectCancel = nil

	if res.generation != s.generation || res.seq != s.latestSeq {
		s.stats.Stale++
		s.auditor.Record(res.frameSeq, res.timestamp, outcomeStale, res.detections, nil)
		return
	}

	s.recordLatency(res.latency)

	if res.err != nil {
		s.stats.Errors++
		s.reportError(res.err, map[string]interface{}{
			"detector": s.detector.Name(),
			"frameSeq": res.frameSeq,
		}, "detector failed")
		return
	}

	s.process(res.frameSeq, res.timestamp, res.detections)
}

// process runs one frame's detections through selection, cooldown, catalog
// resolution and the cart. now is the frame's sampling time.
func (s *Scanner) process(frameSeq uint64, now time.Time, detections []model.Detection) {
	best, ok := SelectBest(detections, s.threshold)
	if !ok {
		outcome := outcomeEmpty
		if len(detections) > 0 {
			s.stats.BelowThreshold++
			outcome = outcomeBelowThreshold
		}
		s.auditor.Record(frameSeq, now, outcome, detections, nil)
		return
	}

	if !s.gate.Allow(best.Label, now) {
		s.stats.CooledDown++
		s.auditor.Record(frameSeq, now, outcomeCooledDown, detections, &best)
		return
	}

	product := s.svcs.CatalogSvc.Resolve(best.Label)
	line, eventType := s.cart.Apply(product)
	s.cartVersion++
	s.stats.Accepted++
	s.auditor.Record(frameSeq, now, outcomeAccepted, detections, &best)

	lgr.Logger.Debug("detection accepted",
		slog.String("label", best.Label),
		slog.Float64("confidence", best.Confidence),
		slog.String("product", product.Name),
		slog.Int("quantity", line.Quantity),
	)

	s.emit(model.Event{Type: eventType, Line: line})
}

func (s *Scanner) setQuantity(id string, quantity int) {
	line, eventType, ok := s.cart.SetQuantity(id, quantity)
	if !ok {
		lgr.Logger.Debug("quantity unchanged", slog.String("lineID", id), slog.Int("quantity", quantity))
		return
	}
	s.cartVersion++
	s.emit(model.Event{Type: eventType, Line: line})
}

func (s *Scanner) remove(id string) {
	line, ok := s.cart.Remove(id)
	if !ok {
		lgr.Logger.Debug("no such line", slog.String("lineID", id))
		return
	}
	s.cartVersion++
	s.emit(model.Event{Type: model.LineRemoved, Line: line})
}

func (s *Scanner) generateBill() (model.Bill, error) {
	bill, err := billing.BuildAt(s.cart.Snapshot(), s.taxRate, s.clock.Now())
	if err != nil {
		return model.Bill{}, err
	}

	if s.svcs.DataSvc != nil {
		if err := s.svcs.DataSvc.NewBill(bill); err != nil {
			s.reportError(err, map[string]interface{}{"billID": bill.ID}, "error archiving bill")
		}
	}

	s.openBill = &bill
	s.billVersion = s.cartVersion

	lgr.Logger.Info("bill created",
		slog.String("billID", bill.ID),
		slog.Int("items", bill.Items()),
		slog.String("grandTotal", billing.FormatCurrency(bill.GrandTotal)),
	)

	s.emit(model.Event{Type: model.BillCreated, Bill: bill})
	return bill, nil
}

func (s *Scanner) sendBill(address string) error {
	if s.sending {
		return ErrSendInProgress
	}

	address = strings.TrimSpace(address)
	if err := delivery.ValidateAddress(address); err != nil {
		s.emit(model.Event{Type: model.BillFailed, Reason: err.Error()})
		return err
	}

	if s.openBill == nil || s.billVersion != s.cartVersion {
		if _, err := s.generateBill(); err != nil {
			return err
		}
	}

	bill := *s.openBill
	s.sending = true

	go func() {
		ctx, cancel := context.WithTimeout(s.runCtx, deliveryTimeout)
		defer cancel()

		err := s.deliver(ctx, address, bill)
		s.deliveries <- deliveryResult{
			bill:    bill,
			address: address,
			at:      s.clock.Now(),
			err:     err,
		}
	}()
	return nil
}

func (s *Scanner) deliver(ctx context.Context, address string, bill model.Bill) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panic: %v", r)
		}
	}()
	return s.svcs.DeliverySvc.Send(ctx, address, bill)
}

func (s *Scanner) onDelivery(res deliveryResult) {
	s.sending = false

	if res.err != nil {
		s.reportError(res.err, map[string]interface{}{
			"billID":  res.bill.ID,
			"address": res.address,
		}, "error sending bill")
		s.emit(model.Event{Type: model.BillFailed, Bill: res.bill, Reason: res.err.Error()})
		return
	}

	delivered := res.bill
	delivered.CustomerEmail = res.address
	at := res.at
	delivered.DeliveredAt = &at

	if s.svcs.DataSvc != nil {
		if err := s.svcs.DataSvc.MarkBillDelivered(delivered.ID, res.address, at); err != nil {
			s.reportError(err, map[string]interface{}{"billID": delivered.ID}, "error marking bill delivered")
		}
	}

	s.emit(model.Event{Type: model.BillSent, Bill: delivered})

	unchanged := s.openBill != nil && s.openBill.ID == delivered.ID && s.billVersion == s.cartVersion
	if s.openBill != nil && s.openBill.ID == delivered.ID {
		s.openBill = nil
	}
	s.cartVersion++

	// Ready for the next customer.
	if unchanged {
		s.cart.Clear()
		s.emit(model.Event{Type: model.CartCleared})
		return
	}

	// The cart moved on while the receipt was in flight. Only the billed
	// units leave; the rest waits for the next bill.
	before := s.cart.Snapshot()
	remaining := s.cart.Deduct(delivered.Lines)
	if len(remaining) == 0 {
		s.emit(model.Event{Type: model.CartCleared})
		return
	}

	for _, billed := range delivered.Lines {
		if lineIndex(before, billed.ID) < 0 {
			continue
		}
		if i := lineIndex(remaining, billed.ID); i >= 0 {
			s.emit(model.Event{Type: model.LineUpdated, Line: remaining[i]})
		} else {
			s.emit(model.Event{Type: model.LineRemoved, Line: billed})
		}
	}
}

func lineIndex(lines []model.CartLine, id string) int {
	for i, l := range lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Scanner) recordLatency(d time.Duration) {
	s.latencies = append(s.latencies, float64(d)/float64(time.Millisecond))
	if len(s.latencies) > latencyWindow {
		s.latencies = s.latencies[len(s.latencies)-latencyWindow:]
	}
}

func (s *Scanner) currentStats() model.ScannerStats {
	stats := s.stats
	stats.Name = scannerProc
	stats.Session = s.session
	stats.Source = s.source.Name
	stats.Uptime = int64(s.clock.Since(s.startTime).Seconds())

	if len(s.latencies) > 0 {
		sorted := make([]float64, len(s.latencies))
		copy(sorted, s.latencies)
		sort.Float64s(sorted)
		stats.AvgInferenceMs = stat.Mean(sorted, nil)
		stats.P95InferenceMs = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	return stats
}

func (s *Scanner) publishStats() {
	if s.statsStream == nil {
		return
	}
	select {
	case s.statsStream <- s.currentStats():
	default:
		lgr.Logger.Warn("statsStream full, dropping scanner stats")
	}
}

// emit waits for room on the event stream while the scanner runs, so every
// cart change is delivered once. Events are only dropped once Run's context
// is done, or when no Run is active.
func (s *Scanner) emit(event model.Event) {
	event.Timestamp = s.clock.Now()
	select {
	case s.events <- event:
		return
	default:
	}

	if s.runCtx == nil {
		lgr.Logger.Warn("event stream full, dropping event", slog.String("type", string(event.Type)))
		return
	}

	lgr.Logger.Warn("event stream full, waiting for reader", slog.String("type", string(event.Type)))
	select {
	case s.events <- event:
	case <-s.runCtx.Done():
		lgr.Logger.Warn("scanner stopping, dropping event", slog.String("type", string(event.Type)))
	}
}

func (s *Scanner) reportError(err error, misc map[string]interface{}, messagef string, args ...interface{}) {
	if s.errorStream == nil {
		lgr.Logger.Error(fmt.Sprintf(messagef, args...), slog.Any("error", err))
		return
	}
	select {
	case s.errorStream <- model.GenError(scannerProc, err, misc, messagef, args...):
	default:
		lgr.Logger.Warn("errorStream full, dropping error", slog.Any("error", err))
	}
}

func (s *Scanner) shutdown() {
	if s.capturing {
		if err := s.svcs.CaptureSvc.Stop(); err != nil {
			lgr.Logger.Warn("error stopping capture", slog.Any("error", err))
		}
		s.capturing = false
		s.frames = nil
	}
	if s.detectCancel != nil {
		s.detectCancel()
		s.detectCancel = nil
	}
	s.publishStats()
}
