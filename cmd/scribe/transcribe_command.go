package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/language"
	"scribe/internal/services/whisperx"
	"scribe/internal/transcode"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var model string
	var langFlag string
	var align bool
	var outputDir string

	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a local file immediately, bypassing the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(source)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", source)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", source)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			dest := strings.TrimSpace(outputDir)
			if dest == "" {
				dest = cfg.Paths.ResultsDir
			}
			dest, err = filepath.Abs(dest)
			if err != nil {
				return fmt.Errorf("resolve output dir: %w", err)
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			stdout := cmd.OutOrStdout()
			runCtx := cmd.Context()

			audioPath := source
			if !strings.EqualFold(filepath.Ext(source), ".wav") {
				workDir, err := os.MkdirTemp(cfg.Paths.StagingDir, "transcribe-")
				if err != nil {
					return fmt.Errorf("create staging dir: %w", err)
				}
				defer os.RemoveAll(workDir)

				base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
				audioPath = filepath.Join(workDir, base+".wav")
				fmt.Fprintf(stdout, "Converting %s...\n", filepath.Base(source))
				if err := transcode.ExtractAudio(runCtx, cfg, source, audioPath); err != nil {
					return err
				}
			}

			resolvedModel := strings.TrimSpace(model)
			if resolvedModel == "" {
				resolvedModel = strings.TrimSpace(cfg.Transcription.Model)
			}
			if resolvedModel == "" {
				resolvedModel = whisperx.DefaultModel
			}

			manager, err := ctx.modelManager()
			if err != nil {
				return err
			}
			if err := manager.Ensure(runCtx, resolvedModel); err != nil {
				return err
			}

			lang := language.Normalize(langFlag)
			if lang == "" {
				lang = language.Normalize(cfg.Transcription.Language)
			}

			fmt.Fprintf(stdout, "Transcribing with %s...\n", resolvedModel)
			svc := whisperx.NewService(whisperx.Config{
				Model:       resolvedModel,
				ComputeType: cfg.Transcription.ComputeType,
				BatchSize:   cfg.Transcription.BatchSize,
				CUDAEnabled: cfg.Transcription.CUDAEnabled,
				VADMethod:   cfg.Transcription.VADMethod,
				HFToken:     cfg.Transcription.HFToken,
				ModelDir:    manager.Path(resolvedModel),
				HubCacheDir: cfg.ModelCache.HubCacheDir,
			})

			result, err := svc.Transcribe(runCtx, audioPath, dest, whisperx.Options{
				Language: lang,
				Align:    align || cfg.Transcription.Align,
			})
			if err != nil {
				return err
			}

			base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
			textPath := filepath.Join(dest, base+".txt")
			if err := os.WriteFile(textPath, []byte(result.Text+"\n"), 0o644); err != nil {
				return fmt.Errorf("write transcript text: %w", err)
			}

			if result.DetectedLanguage != "" {
				fmt.Fprintf(stdout, "Detected language: %s\n", result.DetectedLanguage)
			}
			fmt.Fprintf(stdout, "Transcript: %s\n", textPath)
			if result.SRTPath != "" {
				fmt.Fprintf(stdout, "Subtitles:  %s\n", result.SRTPath)
			}
			if result.JSONPath != "" {
				fmt.Fprintf(stdout, "Segments:   %s\n", result.JSONPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "WhisperX model override")
	cmd.Flags().StringVar(&langFlag, "language", "", "Language hint, empty or - for auto-detect")
	cmd.Flags().BoolVar(&align, "align", false, "Enable word-level alignment")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for transcript artifacts (defaults to the results dir)")
	return cmd
}
