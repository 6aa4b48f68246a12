package main

import (
	"context"
	"flag"
	"math/rand"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/mxhost/tpulink/internal/export"
	"github.com/mxhost/tpulink/internal/link"
	"github.com/mxhost/tpulink/internal/matrix"
	"github.com/mxhost/tpulink/internal/session"
	"github.com/mxhost/tpulink/internal/sim"
)

var (
	serialPort   = flag.String("port", "", "Serial device (e.g. /dev/ttyUSB0, COM3)")
	baudRate     = flag.Int("baud", link.DefaultBaudRate, "Serial baud rate")
	bridgeAddr   = flag.String("addr", "", "TCP serial bridge address (e.g. localhost:7000)")
	listPorts    = flag.Bool("list-ports", false, "List available serial ports and exit")
	useLegacy    = flag.Bool("legacy", false, "Use the legacy byte-addressed protocol")
	dim          = flag.Int("dim", 8, "Accelerator array dimension")
	ioTimeout    = flag.Duration("timeout", 2*time.Second, "Per-call channel timeout")
	pollInterval = flag.Duration("poll-interval", link.DefaultPollInterval, "Status poll interval")
	pollTimeout  = flag.Duration("poll-timeout", link.DefaultPollTimeout, "Status poll deadline")
	iterations   = flag.Int("iters", 10, "Benchmark iterations")
	scale        = flag.Float64("scale", 1.0, "Operand value scale")
	seed         = flag.Int64("seed", 0, "Random seed (0 = time-based)")
	resetEach    = flag.Bool("reset-each", false, "Reset the accelerator before every multiply")
	enableCache  = flag.Bool("cache", false, "Enable the host-side result cache")
	listenAddr   = flag.String("listen", "", "Address for the Prometheus /metrics endpoint (e.g. :9100)")
	enableOTel   = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	cpuProfile   = flag.String("cpuprofile", "", "Write cpu profile to file")
	arrowOut     = flag.Bool("arrow", false, "Write the demo result matrix as an Arrow IPC stream to stdout")
	statsOut     = flag.String("stats-out", "", "Write final session stats as CBOR to file")
	simDelay     = flag.Duration("sim-delay", 200*time.Microsecond, "Simulated compute latency (no hardware attached)")
)

func main() {
	// Initialize logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	if *listPorts {
		ports, err := link.ListPorts()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to enumerate serial ports")
		}
		if len(ports) == 0 {
			log.Warn().Msg("No serial ports found")
		}
		for _, p := range ports {
			log.Info().Str("port", p).Msg("Serial port")
		}
		return
	}

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CPU profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("Could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	if *listenAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Info().Str("addr", *listenAddr).Msg("Serving metrics")
			if err := http.ListenAndServe(*listenAddr, nil); err != nil {
				log.Fatal().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	ch := openChannel()
	var drv link.Driver
	if *useLegacy {
		drv = link.NewByteEngine(ch)
	} else {
		drv = link.NewPacketEngine(ch, log.Logger)
	}

	cfg := session.DefaultConfig()
	cfg.Dim = *dim
	cfg.PollInterval = *pollInterval
	cfg.PollTimeout = *pollTimeout
	cfg.ResetBeforeRun = *resetEach
	cfg.EnableCache = *enableCache

	sess, err := session.Connect(drv, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to accelerator")
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close session")
		}
	}()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))
	ctx := context.Background()

	// Single verified multiply against a full-precision reference.
	a := matrix.Random(*dim, *dim, rng, float32(*scale))
	b := matrix.Random(*dim, *dim, rng, float32(*scale))

	start := time.Now()
	result, err := sess.RunMultiply(ctx, a, b)
	if err != nil {
		log.Fatal().Err(err).Msg("Multiply failed")
	}
	elapsed := time.Since(start)

	var want mat.Dense
	want.Mul(a.Dense(), b.Dense())
	maxErr := result.MaxAbsDiff(&want)

	log.Info().
		Int("dim", *dim).
		Dur("elapsed", elapsed).
		Float64("max_error", maxErr).
		Msg("Verified multiply against full-precision reference")
	if maxErr > 1.0 {
		log.Warn().Float64("max_error", maxErr).Msg("Result outside expected half-precision tolerance")
	}

	if *arrowOut {
		rec := export.NewRecordBuilder(nil).MatrixRecord(result)
		if err := export.WriteIPCStream(os.Stdout, rec); err != nil {
			log.Warn().Err(err).Msg("Failed to write arrow stream")
		}
		rec.Release()
	}

	// Benchmark loop.
	if *iterations > 0 {
		log.Info().Int("iters", *iterations).Msg("Starting benchmark")
		for i := 0; i < *iterations; i++ {
			a := matrix.Random(*dim, *dim, rng, float32(*scale))
			b := matrix.Random(*dim, *dim, rng, float32(*scale))
			if _, err := sess.RunMultiply(ctx, a, b); err != nil {
				log.Error().Err(err).Int("iter", i+1).Msg("Benchmark iteration failed")
				break
			}
			if (i+1)%10 == 0 {
				st := sess.Stats()
				log.Info().
					Int("iter", i+1).
					Dur("avg", st.Average).
					Float64("mops", st.Throughput/1e6).
					Msg("Benchmark progress")
			}
		}
	}

	st := sess.Stats()
	log.Info().
		Int64("count", st.Count).
		Dur("total", st.Total).
		Dur("avg", st.Average).
		Dur("last", st.Last).
		Float64("throughput_mops", st.Throughput/1e6).
		Msg("Session statistics")

	if *statsOut != "" {
		if err := export.WriteStatsFile(*statsOut, st); err != nil {
			log.Warn().Err(err).Str("path", *statsOut).Msg("Failed to write stats")
		}
	}
}

// openChannel picks the transport: a local serial device, a TCP serial
// bridge, or the in-process simulator when neither is given.
func openChannel() link.Channel {
	switch {
	case *serialPort != "":
		ch, err := link.OpenSerial(*serialPort, *baudRate, *ioTimeout)
		if err != nil {
			log.Fatal().Err(err).Str("port", *serialPort).Msg("Failed to open serial port")
		}
		log.Info().Str("port", *serialPort).Int("baud", *baudRate).Msg("Connected via serial")
		return ch
	case *bridgeAddr != "":
		conn, err := net.Dial("tcp", *bridgeAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", *bridgeAddr).Msg("Failed to dial serial bridge")
		}
		log.Info().Str("addr", *bridgeAddr).Msg("Connected via TCP bridge")
		return link.NewConnChannel(conn, *ioTimeout)
	default:
		if *useLegacy {
			log.Fatal().Msg("The simulator speaks the canonical protocol; -legacy needs -port or -addr")
		}
		devCfg := sim.Config{Dim: *dim, ComputeDelay: *simDelay}
		log.Info().Int("dim", *dim).Dur("delay", *simDelay).Msg("No hardware attached, using simulator")
		return sim.New(devCfg, log.Logger).Dial(*ioTimeout)
	}
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("tpulink"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
