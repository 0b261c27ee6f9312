package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stevemurr/vacancy-store/config"
	"github.com/stevemurr/vacancy-store/handler"
	"github.com/stevemurr/vacancy-store/logger"
	"github.com/stevemurr/vacancy-store/mapper"
	"github.com/stevemurr/vacancy-store/model"
	"github.com/stevemurr/vacancy-store/schema"
	"github.com/stevemurr/vacancy-store/store"
)

func main() {
	var (
		envFile    = flag.String("env", ".env", "Environment file to load if present")
		command    = flag.String("cmd", "serve", "Command to run: serve, import, list, drop, collections")
		file       = flag.String("file", "-", "JSON file to import (vacancy, array or search page); - reads stdin")
		collection = flag.String("collection", "", "Collection to drop")
		field      = flag.String("field", "", "Filter field for list")
		value      = flag.String("value", "", "Filter value for list")
		sortBy     = flag.String("sort", "", "Sort order for list: salary")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	lg := logger.Get()

	backend, err := store.New(cfg.Backend, cfg.DataDir, cfg.DSN)
	if err != nil {
		lg.Fatal().Err(err).Str("backend", cfg.Backend).Msg("failed to create store")
	}
	s := store.Logged(backend, lg)
	defer s.Close()

	reg := schema.NewRegistry()
	if err := mapper.RegisterCollections(reg); err != nil {
		lg.Fatal().Err(err).Msg("failed to register collections")
	}
	m := mapper.New(s, reg, lg)

	switch *command {
	case "serve":
		err = runServe(cfg, s, m, lg)
	case "import":
		err = runImport(m, *file)
	case "list":
		err = runList(s, m, *field, *value, *sortBy)
	case "drop":
		err = runDrop(s, *collection)
	case "collections":
		err = runCollections(s)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		s.Close()
		lg.Fatal().Err(err).Str("cmd", *command).Msg("command failed")
	}
}

func runServe(cfg *config.Config, s store.Store, m *mapper.Mapper, lg zerolog.Logger) error {
	if err := m.EnsureCollections(); err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)
	srv := newServer(cfg, s, m, lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Str("store", cfg.Backend).Str("data", cfg.DataDir).Msg("vacancy store starting")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	lg.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newServer(cfg *config.Config, s store.Store, m *mapper.Mapper, lg zerolog.Logger) *http.Server {
	h := handler.New(s, m, lg, cfg.AllowedOrigins)
	return &http.Server{Addr: cfg.Addr(), Handler: h, ReadHeaderTimeout: 10 * time.Second}
}

func runImport(m *mapper.Mapper, path string) error {
	if err := m.EnsureCollections(); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	vs, err := model.DecodeVacancies(data)
	if err != nil {
		return err
	}
	if err := m.PersistVacancies(vs); err != nil {
		return err
	}
	fmt.Printf("imported %d vacancies\n", len(vs))
	return nil
}

func runList(s store.Store, m *mapper.Mapper, field, value, sortBy string) error {
	if err := m.EnsureCollections(); err != nil {
		return err
	}
	var filter *store.Filter
	if field != "" {
		hdr, err := s.Header(mapper.Vacancies)
		if err != nil {
			return err
		}
		ft, ok := hdr.Lookup(field)
		if !ok {
			return fmt.Errorf("%w: unknown field %q", store.ErrSchemaMismatch, field)
		}
		v, err := schema.ParseValue(ft, value)
		if err != nil {
			return err
		}
		filter = &store.Filter{Field: field, Value: v}
	}
	vs, err := m.LoadVacancies(filter)
	if err != nil {
		return err
	}
	switch sortBy {
	case "":
	case "salary":
		model.SortBySalary(vs)
	default:
		return fmt.Errorf("unknown sort %q", sortBy)
	}

	out := make([]map[string]any, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Flatten(model.Full))
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(out)
}

func runDrop(s store.Store, name string) error {
	if name == "" {
		return errors.New("-collection is required")
	}
	if err := s.DropCollection(name); err != nil {
		return err
	}
	fmt.Printf("dropped %s\n", name)
	return nil
}

func runCollections(s store.Store) error {
	names, err := s.ListCollections()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}
