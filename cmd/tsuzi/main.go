// Package main is the entry point for the Tsuzi CLI, a local-first voice
// and text assistant that routes utterances to domain managers or to
// conversational generation.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tsuzi/internal/config"
	"tsuzi/internal/executor"
	"tsuzi/internal/intent"
	"tsuzi/internal/llm"
	"tsuzi/internal/logging"
	"tsuzi/internal/managers"
	"tsuzi/internal/session"
	"tsuzi/internal/voice"
)

var version = "0.1.0"

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	var cfgPath string
	var mute bool

	rootCmd := &cobra.Command{
		Use:   "tsuzi",
		Short: "Tsuzi is a local voice and text assistant",
		Long: "Tsuzi routes what you say to timers, alarms, tasks, calendar,\n" +
			"weather, and news, and falls back to conversation for everything else.\n" +
			"All inference runs against a local OpenAI-compatible endpoint.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cfgPath, mute)
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.tsuzi/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&mute, "mute", false, "disable speech output")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive assistant loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cfgPath, mute)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tsuzi %s\n", version)
		},
	}

	rootCmd.AddCommand(chatCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func loadConfig(cfgPath string) (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// buildRegistry registers every manager constructor. Construction is lazy:
// a manager that cannot initialize degrades its own capability only.
func buildRegistry(cfg *config.Config, client *llm.Client) *managers.Registry {
	registry := managers.NewRegistry()
	registry.Register(managers.TimerManagerID, func() (managers.Manager, error) {
		return managers.NewTimerManager()
	})
	registry.Register(managers.AlarmManagerID, func() (managers.Manager, error) {
		return managers.NewAlarmManager(cfg.DataDir)
	})
	registry.Register(managers.TaskManagerID, func() (managers.Manager, error) {
		return managers.NewTaskManager(cfg.DataDir)
	})
	registry.Register(managers.CalendarManagerID, func() (managers.Manager, error) {
		return managers.NewCalendarManager(cfg.DataDir)
	})
	registry.Register(managers.WeatherManagerID, func() (managers.Manager, error) {
		return managers.NewWeatherManager(cfg.Weather.Latitude, cfg.Weather.Longitude)
	})
	registry.Register(managers.NewsManagerID, func() (managers.Manager, error) {
		var curator llm.Completer
		if cfg.News.Curated {
			curator = client
		}
		return managers.NewNewsManager(cfg.News.Topics, curator)
	})
	registry.Register(managers.AppsManagerID, func() (managers.Manager, error) {
		return managers.NewAppsManager()
	})
	return registry
}

// mutedSink discards speech; used with --mute and when no sidecar runs.
type mutedSink struct{}

func (mutedSink) Speak(ctx context.Context, text string) error { return nil }
func (mutedSink) Stop()                                        {}
func (mutedSink) Reset()                                       {}

func runChat(cfgPath string, mute bool) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	cleanup, err := logging.Setup(logging.Config{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		return err
	}
	defer cleanup()
	log := logging.Component("main")

	client := llm.NewClient(llm.Config{
		Endpoint:        cfg.LLM.Endpoint,
		APIKey:          cfg.LLM.APIKey,
		ChatModel:       cfg.LLM.ChatModel,
		ClassifierModel: cfg.LLM.ClassifierModel,
		SummaryModel:    cfg.LLM.SummaryModel,
		Timeout:         cfg.LLM.Timeout,
	})

	registry := buildRegistry(cfg, client)
	defer registry.Close()

	exec := executor.New(registry)
	router := intent.NewRouter(client,
		intent.WithConfidenceThreshold(cfg.Router.ConfidenceThreshold),
		intent.WithDebugLogging(cfg.Router.DebugLogging),
	)

	var sink session.SpeechSink
	if mute {
		sink = mutedSink{}
	} else {
		speaker := voice.NewSpeaker(voice.SpeakerConfig{
			Endpoint: cfg.Speech.TTSEndpoint,
			Voice:    cfg.Speech.Voice,
			Speed:    cfg.Speech.Speed,
		})
		speaker.SetPlaybackFunc(voice.SystemPlayback)
		defer speaker.Close()
		sink = speaker
	}

	conv := session.NewConversation(cfg.Session.RecentTurns)
	summaries := session.NewSummaryWorker(client, conv)
	summaries.Start()

	sess := session.New(session.Config{
		RecentTurns:  cfg.Session.RecentTurns,
		SystemPrompt: cfg.Session.SystemPrompt,
		Streaming:    cfg.Speech.StreamingEnabled,
	}, router, exec, client, sink, conv, summaries)
	defer sess.Close()

	// Timers are announced between turns; construct the manager up front so
	// the event channel exists before the first countdown.
	if mgr, err := registry.Get(managers.TimerManagerID); err == nil {
		if tm, ok := mgr.(*managers.TimerManager); ok {
			sess.SetTimerEvents(tm.Events())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var listen func(context.Context) (string, error)
	if cfg.Audio.InputEnabled {
		transcriber := voice.NewTranscriber(voice.TranscriberConfig{Endpoint: cfg.Audio.ASREndpoint})
		defer transcriber.Close()
		listen = transcriber.Transcribe
		fmt.Println(noticeStyle.Render("listening through the ASR sidecar, say \"exit\" to quit"))
	} else {
		reader := bufio.NewScanner(os.Stdin)
		listen = func(ctx context.Context) (string, error) {
			fmt.Print(promptStyle.Render("you> "))
			if !reader.Scan() {
				if err := reader.Err(); err != nil {
					return "", err
				}
				return "", errors.New("input closed")
			}
			return strings.TrimSpace(reader.Text()), nil
		}
		fmt.Println(noticeStyle.Render("tsuzi " + version + " (type \"exit\" to quit)"))
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		for _, line := range sess.AnnounceTimers(ctx) {
			fmt.Println(assistantStyle.Render("tsuzi> " + line))
		}

		text, err := sess.Listen(ctx, listen)
		if err != nil {
			if errors.Is(err, voice.ErrEmptyTranscript) || errors.Is(err, context.Canceled) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if text == "" {
			continue
		}
		if intent.IsExitCommand(text) {
			fmt.Println(noticeStyle.Render("goodbye"))
			return nil
		}

		reply, err := sess.HandleTurn(ctx, text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			log.Warn().Err(err).Msg("turn failed")
		}
		if reply != "" {
			fmt.Println(assistantStyle.Render("tsuzi> " + reply))
		}
	}
}
