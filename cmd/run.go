package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbtrial/internal/database"
	"kbtrial/internal/repository"
	"kbtrial/internal/services"
	"kbtrial/internal/terminal"
)

var (
	runParticipant string
	runStore       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the protocol in this terminal and print results as JSON lines.",
	RunE:  runTerminal,
}

func init() {
	runCmd.Flags().StringVar(&runParticipant, "participant", "terminal", "participant id recorded with the session")
	runCmd.Flags().BoolVar(&runStore, "store", false, "also store results in the configured database")
	rootCmd.AddCommand(runCmd)
}

func runTerminal(cmd *cobra.Command, _ []string) error {
	// The screen owns the terminal, so logs only go to files.
	console := false
	a, err := bootstrap(&console)
	if err != nil {
		return err
	}
	defer a.log.Sync()
	log := a.log

	protocol, err := a.loadProtocol()
	if err != nil {
		return err
	}

	var store services.ResultStore
	if runStore {
		db, err := database.Open(a.cfg.Database, log)
		if err != nil {
			return err
		}
		store = repository.New(db)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	fini := sync.OnceFunc(screen.Fini)
	defer fini()
	screen.HideCursor()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	term := terminal.New(screen, log)
	runner := services.NewRunner(log, protocol, nil, store)
	session, err := runner.Start(ctx, services.StartOptions{
		ParticipantID: runParticipant,
		Configure: func(o *services.SessionOptions) {
			o.Surface.OnChange(term.Draw)
		},
	})
	if err != nil {
		return err
	}

	runErr := term.Run(ctx, session)
	fini()

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, r := range session.Results() {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	st := session.State()
	log.Info("Terminal session ended",
		zap.String("session_id", session.ID),
		zap.Bool("complete", st.IsComplete),
		zap.Bool("aborted", st.IsAborted),
	)
	if st.IsAborted {
		fmt.Fprintln(os.Stderr, "session aborted")
	}
	return runErr
}
