package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/chartloom-cli/internal/config"
	"github.com/KaramelBytes/chartloom-cli/internal/report"
	"github.com/KaramelBytes/chartloom-cli/internal/session"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	askData        datasetFlags
	askQuestion    string
	askMode        string
	askProvider    string
	askModel       string
	askMaxTokens   int
	askTemperature float64
	askSampleRows  int
	askSummary     bool
	askDryRun      bool
	askStream      bool
	askQuiet       bool
	askJSON        bool
	askOutput      string
	askHTML        string
	askOllamaHost  string
	askTimeoutSec  int
)

var askCmd = &cobra.Command{
	Use:   "ask <file>",
	Short: "Ask a language model a question about the (filtered) table",
	Long: `ask sends a question to a language model. In data mode (default) the prompt
embeds the column lists and the first rows of the filtered table, and the model
is told to ground its answer in them. In search mode only the question is sent
and the model is asked to cite sources. Exactly one call is made; failures are
reported, never retried.`,
	Example: `  chartloom ask exports.csv -q "Which port grew fastest?"
  chartloom ask exports.csv -q "Summarize coal exports" --filter Kategori=Batubara --summary
  chartloom ask exports.csv -q "Global coal outlook" --mode search --provider anthropic
  chartloom ask exports.csv -q "Trends?" --provider ollama --model llama3.1:8b --stream
  chartloom ask exports.csv -q "Trends?" --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		sess, spec, err := askData.open(args[0])
		if err != nil {
			return err
		}
		question := askQuestion
		if strings.TrimSpace(question) == "" {
			question = spec.Question
		}
		modeRaw := askMode
		if !cmd.Flags().Changed("mode") && spec.Mode != "" {
			modeRaw = spec.Mode
		}
		mode, err := analysis.ParseMode(modeRaw)
		if err != nil {
			return err
		}

		provider, err := normalizeProvider(cfg, askProvider)
		if err != nil {
			return err
		}
		model := selectModel(cfg, provider, askProvider != "", askModel)
		maxTokens := askMaxTokens
		if maxTokens <= 0 && cfg != nil {
			maxTokens = cfg.MaxTokens
		}
		if maxTokens <= 0 {
			maxTokens = 2048
		}
		temp := 1.0
		if cfg != nil {
			temp = cfg.Temperature
		}
		if cmd.Flags().Changed("temperature") {
			temp = askTemperature
		}
		sampleRows := askSampleRows
		if sampleRows <= 0 && cfg != nil {
			sampleRows = cfg.SampleRows
		}
		aopt := analysis.Options{SampleRows: sampleRows, Summary: askSummary}

		req, err := sess.Compose(question, mode, aopt)
		if err != nil {
			return err
		}
		if askDryRun {
			fmt.Fprintf(out, "Mode: %s  Model: %s (%s)  Sample rows: %d  Tokens≈%d\n", req.Mode, model, provider, req.SampleRows, req.Tokens)
			if cost, ok := ai.EstimateCostUSD(model, req.Tokens, maxTokens); ok {
				fmt.Fprintf(out, "Estimated cost (upper bound): ~$%.4f\n", cost)
			}
			fmt.Fprintln(out, "\n--- system ---")
			fmt.Fprintln(out, req.System)
			fmt.Fprintln(out, "\n--- user ---")
			fmt.Fprintln(out, req.User)
			return nil
		}

		if limit, over := ai.ExceedsContext(model, req.Tokens, maxTokens); over && !askQuiet {
			fmt.Fprintf(out, "⚠ Warning: prompt + max-tokens (≈%d) exceeds the %s context window (%d).\n", req.Tokens+maxTokens, model, limit)
		}

		rt, err := buildRuntime(cfg, provider, askOllamaHost)
		if err != nil {
			return err
		}
		timeoutSec := askTimeoutSec
		if timeoutSec <= 0 {
			timeoutSec = 180
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSec)*time.Second)
		defer cancel()

		opt := session.AskOptions{
			Provider:    provider,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temp,
			Analysis:    aopt,
		}
		_, canStream := rt.(ai.StreamRuntime)
		streaming := askStream && canStream && !askJSON
		if askStream && !canStream && !askQuiet {
			fmt.Fprintln(out, "⚠ Streaming not supported for this provider; falling back to non-streaming.")
		}
		if streaming {
			opt.OnDelta = func(d string) { fmt.Fprint(out, d) }
		}
		if !askQuiet && !askJSON {
			fmt.Fprintf(out, "⚙ Asking model=%s (prompt tokens≈%d) ...\n", model, req.Tokens)
		}
		ans, err := sess.Ask(ctx, rt, question, mode, opt)
		if err != nil {
			return friendlyError(err, provider, model)
		}

		meta := report.Meta{
			Dataset:    sess.Name,
			Rows:       sess.Filtered().NumRows(),
			SampleRows: ans.Request.SampleRows,
			Filters:    sess.Filters(),
			Question:   ans.Request.Question,
			Mode:       string(ans.Request.Mode),
			Model:      model,
			Generated:  time.Now(),
		}

		switch {
		case askJSON:
			b, err := utils.PrettyJSON(map[string]any{
				"dataset":           meta.Dataset,
				"rows":              meta.Rows,
				"sample_rows":       meta.SampleRows,
				"question":          meta.Question,
				"mode":              meta.Mode,
				"provider":          provider,
				"model":             model,
				"request_id":        ans.RequestID,
				"prompt_tokens":     ans.Usage.PromptTokens,
				"completion_tokens": ans.Usage.CompletionTokens,
				"content":           ans.Text,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		case streaming:
			fmt.Fprintln(out)
		case askQuiet:
			fmt.Fprintln(out, ans.Text)
		default:
			fmt.Fprintln(out, "\n=== AI Response ===")
			fmt.Fprintln(out, ans.Text)
		}
		if !askQuiet && !askJSON {
			if ans.RequestID != "" {
				fmt.Fprintf(out, "Request ID: %s\n", ans.RequestID)
			}
			if ans.Usage.TotalTokens > 0 {
				if cost, ok := ai.EstimateCostUSD(model, ans.Usage.PromptTokens, ans.Usage.CompletionTokens); ok {
					fmt.Fprintf(out, "Usage: %d tokens (~$%.4f)\n", ans.Usage.TotalTokens, cost)
				} else {
					fmt.Fprintf(out, "Usage: %d tokens\n", ans.Usage.TotalTokens)
				}
			}
		}

		if askOutput != "" {
			if err := utils.SafeWriteFile(askOutput, []byte(report.Markdown(meta, ans.Text))); err != nil {
				return err
			}
			if !askQuiet && !askJSON {
				fmt.Fprintf(out, "✓ Wrote %s\n", askOutput)
			}
		}
		if askHTML != "" {
			page, err := report.HTML(meta, ans.Text)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(askHTML, []byte(page)); err != nil {
				return err
			}
			if !askQuiet && !askJSON {
				fmt.Fprintf(out, "✓ Wrote %s\n", askHTML)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askData.register(askCmd)
	f := askCmd.Flags()
	f.StringVarP(&askQuestion, "question", "q", "", "question to ask (default: from --session)")
	f.StringVar(&askMode, "mode", "data", "analysis mode: data|search")
	f.StringVar(&askProvider, "provider", "", "provider: openai|openrouter|anthropic|ollama (default: config)")
	f.StringVar(&askModel, "model", "", "model name (default: config or provider default)")
	f.IntVar(&askMaxTokens, "max-tokens", 0, "max response tokens (default: config)")
	f.Float64Var(&askTemperature, "temperature", 1.0, "sampling temperature (default: config)")
	f.IntVar(&askSampleRows, "sample-rows", 0, "rows of the filtered table to send, at most 100 (default: config)")
	f.BoolVar(&askSummary, "summary", false, "include per-column statistics and correlations in the prompt")
	f.BoolVar(&askDryRun, "dry-run", false, "print the composed prompt and estimates without calling the model")
	f.BoolVar(&askStream, "stream", false, "stream the answer as it is generated")
	f.BoolVar(&askQuiet, "quiet", false, "print only the answer")
	f.BoolVar(&askJSON, "json", false, "print the answer and metadata as JSON")
	f.StringVarP(&askOutput, "output", "o", "", "write a Markdown report to this path")
	f.StringVar(&askHTML, "html", "", "write an HTML report to this path")
	f.StringVar(&askOllamaHost, "ollama-host", "", "Ollama host (default: config ollama_host)")
	f.IntVar(&askTimeoutSec, "timeout", 180, "request timeout in seconds")
}

// normalizeProvider picks the provider from the flag or config and checks it is registered.
func normalizeProvider(cfg *cfgpkg.Global, flag string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(flag))
	if name == "" && cfg != nil {
		name = strings.ToLower(strings.TrimSpace(cfg.Provider))
	}
	switch name {
	case "":
		name = ai.ProviderOpenAI
	case "local":
		name = ai.ProviderOllama
	case "claude":
		name = ai.ProviderAnthropic
	}
	for _, p := range ai.Providers() {
		if p == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("provider not supported: %s (use one of: %s)", name, strings.Join(ai.Providers(), ", "))
}

// selectModel: explicit flag, then the configured model when it belongs to
// the chosen provider, then the provider default.
func selectModel(cfg *cfgpkg.Global, provider string, providerFlagged bool, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.Model != "" {
		if !providerFlagged || strings.EqualFold(cfg.Provider, provider) {
			return cfg.Model
		}
	}
	if m, ok := ai.DefaultModel(provider); ok {
		return m
	}
	return "gpt-4o"
}

// resolveAPIKey prefers CHARTLOOM_API_KEY, then the provider's own variable,
// then the config file.
func resolveAPIKey(cfg *cfgpkg.Global, provider string) string {
	if v := os.Getenv("CHARTLOOM_API_KEY"); v != "" {
		return v
	}
	if env := ai.KeyEnv(provider); env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	if cfg != nil {
		return cfg.APIKey
	}
	return ""
}

func buildRuntime(cfg *cfgpkg.Global, provider, ollamaHost string) (ai.Runtime, error) {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		APIKey:      resolveAPIKey(cfg, provider),
	}
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		// base_url targets the configured provider only.
		if strings.EqualFold(cfg.Provider, provider) {
			rc.BaseURL = cfg.BaseURL
		}
	}
	if provider == ai.ProviderOllama {
		host := strings.TrimSpace(ollamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = ai.DefaultOllamaHost
		}
		rc.Host = host
	}
	rt, ok := ai.GetRuntime(provider, rc)
	if !ok {
		return nil, fmt.Errorf("provider not supported: %s", provider)
	}
	return rt, nil
}

// friendlyError adds a hint for the common provider failure classes.
func friendlyError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (flag --ollama-host or config 'ollama_host'): %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		env := ai.KeyEnv(provider)
		if env == "" {
			env = "CHARTLOOM_API_KEY"
		}
		return fmt.Errorf("authentication failed: set %s or 'chartloom config set api_key ...': %w", env, err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, try again later: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model: %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name: %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try fewer --sample-rows, no --summary, or a smaller --max-tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please try again later: %w", err)
	}
	return err
}
