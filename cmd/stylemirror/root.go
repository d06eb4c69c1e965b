package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/stylemirror/internal/assist"
	"github.com/capitalize-ai/stylemirror/internal/config"
	"github.com/capitalize-ai/stylemirror/internal/llm"
	"github.com/capitalize-ai/stylemirror/internal/model"
	"github.com/capitalize-ai/stylemirror/internal/service"
	"github.com/capitalize-ai/stylemirror/internal/store"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
)

type options struct {
	name     string
	file     string
	incoming string
	provider string
	model    string
	timeout  time.Duration
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "stylemirror",
		Short:         "Mirror your texting style with each contact",
		Long:          "Imports a pasted chat transcript, infers how you text with that contact, and drafts replies in the same style. Without an API key for the selected provider, demo output is used.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.provider, "provider", "", "LLM provider: gemini, anthropic or openai (default from LLM_PROVIDER)")
	root.PersistentFlags().StringVar(&opts.model, "model", "", "Model override (default from LLM_MODEL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Operation timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log fallback decisions to stderr")

	transcriptFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&opts.name, "name", "", "Contact name as it appears in the transcript")
		cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "Transcript file, - for stdin")
		_ = cmd.MarkFlagRequired("name")
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Parse a transcript and print its messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts)
		},
	}
	transcriptFlags(importCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Import a transcript and print the inferred style profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}
	transcriptFlags(analyzeCmd)

	draftCmd := &cobra.Command{
		Use:   "draft",
		Short: "Import a transcript and draft a reply in your style",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraft(cmd, opts)
		},
	}
	transcriptFlags(draftCmd)
	draftCmd.Flags().StringVar(&opts.incoming, "incoming", "", "Message to reply to (default: the contact's latest message)")

	root.AddCommand(importCmd, analyzeCmd, draftCmd)
	return root
}

func runImport(cmd *cobra.Command, opts *options) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	o, err := newOrchestrator(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer o.Wait()

	c, err := importTranscript(ctx, cmd, o, opts)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), c.Messages)
}

func runAnalyze(cmd *cobra.Command, opts *options) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	o, err := newOrchestrator(ctx, cmd, opts)
	if err != nil {
		return err
	}

	c, err := importTranscript(ctx, cmd, o, opts)
	if err != nil {
		return err
	}
	o.Wait()

	view, err := o.View(c.ID)
	if err != nil {
		return err
	}
	if view.Style == nil {
		return fmt.Errorf("analysis of %q did not produce a profile", opts.name)
	}
	return printJSON(cmd.OutOrStdout(), view.Style)
}

func runDraft(cmd *cobra.Command, opts *options) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	o, err := newOrchestrator(ctx, cmd, opts)
	if err != nil {
		return err
	}

	if _, err := importTranscript(ctx, cmd, o, opts); err != nil {
		return err
	}
	o.Wait()

	draft, ok, err := o.RequestDraft(ctx, opts.incoming)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("nothing to reply to: pass --incoming or include a message from %s", opts.name)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), draft.Text)
	return err
}

func newOrchestrator(ctx context.Context, cmd *cobra.Command, opts *options) (*service.Orchestrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.provider != "" {
		cfg.LLMProvider = opts.provider
	}
	if opts.model != "" {
		cfg.LLMModel = opts.model
	}

	log := logger.NewNop()
	if opts.verbose {
		log, err = logger.NewDevelopment()
		if err != nil {
			return nil, err
		}
	}

	provider, err := llm.ParseProvider(cfg.LLMProvider)
	if err != nil {
		return nil, err
	}
	backend, err := assist.NewBackend(ctx, provider, llm.Config{
		APIKey:  cfg.APIKey(),
		Model:   cfg.LLMModel,
		BaseURL: cfg.LLMBaseURL,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		return nil, err
	}
	if backend == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "no API key for %s, using demo output\n", provider)
	}
	log.Debug("cli backend ready", zap.String("provider", string(provider)), zap.Bool("demo_mode", backend == nil))

	return service.NewOrchestrator(store.New(), assist.NewStyleClient(backend, log), assist.NewReplyClient(backend, log), log), nil
}

func importTranscript(ctx context.Context, cmd *cobra.Command, o *service.Orchestrator, opts *options) (model.Contact, error) {
	transcript, err := readTranscript(cmd.InOrStdin(), opts.file)
	if err != nil {
		return model.Contact{}, err
	}

	c, ok, err := o.Import(ctx, opts.name, transcript)
	if err != nil {
		return model.Contact{}, err
	}
	if !ok {
		return model.Contact{}, fmt.Errorf("name and transcript must not be blank")
	}
	return c, nil
}

func readTranscript(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
