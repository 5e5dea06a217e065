package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quotedesk/quotedesk/internal/ai"
	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/document"
	"github.com/quotedesk/quotedesk/internal/email"
	"github.com/quotedesk/quotedesk/internal/extract"
	"github.com/quotedesk/quotedesk/internal/history"
	"github.com/quotedesk/quotedesk/internal/template"
	"github.com/quotedesk/quotedesk/internal/web"
	"github.com/quotedesk/quotedesk/internal/whatsapp"
)

var (
	cfgFile string
	dryRun  bool
)

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func main() {
	// Secrets can live in a .env file next to the binary.
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "quotedesk",
		Short: "QuoteDesk - WhatsApp quotation automation",
		Long: `QuoteDesk turns WhatsApp quote requests into emailed quotation PDFs.

It listens for WhatsApp Business Cloud API webhook notifications, extracts
the quotation details from the message text, renders a quotation PDF,
emails it to the customer, and confirms back on WhatsApp.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.quotedesk/config.yaml)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(sendTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long:  "Create a new configuration file with your company, email, and WhatsApp settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook listener",
		Long: `Start the webhook server that receives WhatsApp Cloud API notifications.

Incoming messages are queued and processed in the background:
- Quote details are extracted from the message text
- A quotation PDF is rendered and emailed to the customer
- A confirmation (or failure notice) is sent back on WhatsApp

Point your Meta app's webhook at http://<host>:<port>/webhook.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Process messages without sending emails")

	return cmd
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [text]",
		Short: "Extract quote details from message text",
		Long: `Run the text extractor on a message and print the result as JSON.

Reads the message from the arguments, or from stdin when none are given.
Useful for checking what a WhatsApp message would produce before going live.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(args)
		},
	}
}

func statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show quotation history and statistics",
		Long:  "Display recently processed quote requests and overall statistics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent quotes to show")

	return cmd
}

func sendTestCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "send-test",
		Short: "Send a test quotation email",
		Long:  "Render a sample quotation PDF and email it, to verify the email settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSendTest(to)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient address (required)")
	cmd.MarkFlagRequired("to")

	return cmd
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("📋 QuoteDesk Configuration Setup")
	fmt.Println("=================================")
	fmt.Println()

	cfg := &config.Config{}

	fmt.Println("🏢 Company")
	fmt.Println()
	cfg.Options.CompanyName = prompt(reader, "Company name (shown on quotations): ")

	fmt.Println()
	fmt.Println("📧 Email Settings")
	fmt.Println()

	provider := prompt(reader, "Provider (smtp/resend/sendgrid) [smtp]: ")
	if provider == "" {
		provider = "smtp"
	}
	cfg.Email.Provider = provider
	cfg.Email.From = prompt(reader, "From address: ")

	switch provider {
	case "smtp":
		fmt.Println()
		fmt.Println("SMTP Configuration:")
		fmt.Println("  (For Gmail, use an app password: https://support.google.com/accounts/answer/185833)")
		fmt.Println()
		cfg.Email.SMTP.Host = promptDefault(reader, "  Host [smtp.gmail.com]: ", "smtp.gmail.com")
		cfg.Email.SMTP.Port = promptInt(reader, "  Port [465]: ", 465)
		cfg.Email.SMTP.UseTLS = true
		cfg.Email.SMTP.Username = prompt(reader, "  Username: ")
		cfg.Email.SMTP.Password = prompt(reader, "  Password: ")
	default:
		cfg.Email.APIKey = prompt(reader, "API key (or set "+strings.ToUpper(provider)+"_API_KEY): ")
	}

	fmt.Println()
	fmt.Println("💬 WhatsApp Settings")
	fmt.Println()

	cfg.Server.VerifyToken = prompt(reader, "Webhook verify token: ")
	reply := prompt(reader, "Send confirmation replies on WhatsApp? (y/n) [y]: ")
	if reply == "" || strings.EqualFold(reply, "y") {
		cfg.WhatsApp.Reply = true
		cfg.WhatsApp.PhoneNumberID = prompt(reader, "Phone number ID: ")
		cfg.WhatsApp.Token = prompt(reader, "Access token (or set WHATSAPP_TOKEN): ")
	}

	fmt.Println()
	fmt.Println("🤖 AI Fallback")
	fmt.Println()

	aiChoice := prompt(reader, "Enable Gemini fallback for messages the templates miss? (y/n) [n]: ")
	if strings.EqualFold(aiChoice, "y") {
		cfg.AI.Enabled = true
		cfg.AI.APIKey = prompt(reader, "Gemini API key (or set GEMINI_API_KEY): ")
	}

	configPath := resolveConfigPath()
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit the config file if needed")
	fmt.Println("  2. Run 'quotedesk parse \"quote 101 for ...\"' to try the extractor")
	fmt.Println("  3. Run 'quotedesk send-test --to you@example.com' to verify email")
	fmt.Println("  4. Run 'quotedesk serve' and point your Meta webhook at /webhook")

	return nil
}

func runServe() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dryRun {
		cfg.Options.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.ValidateWhatsApp(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := history.NewStore(cfg.Options.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}
	defer store.Close()

	engine, err := template.NewEngine(cfg.Options.CompanyName)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}

	var sender email.Sender
	if !cfg.Options.DryRun {
		sender, err = email.NewSender(cfg.Email)
		if err != nil {
			return fmt.Errorf("failed to initialize email sender: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor := &web.Processor{
		From:     cfg.Email.From,
		Store:    store,
		Sender:   sender,
		Renderer: document.NewPDFRenderer(cfg.Options.CompanyName, cfg.Options.OutputDir),
		Template: engine,
		DryRun:   cfg.Options.DryRun,
	}

	if cfg.WhatsApp.Reply {
		processor.Reply = whatsapp.NewClient(cfg.WhatsApp)
	}

	if cfg.AI.Enabled {
		extractor, err := ai.NewExtractor(ctx, cfg.AI)
		if err != nil {
			return fmt.Errorf("failed to initialize ai fallback: %w", err)
		}
		defer extractor.Close()
		processor.AI = extractor
	}

	queue := web.NewQueue(cfg.Server.QueueSize, cfg.Server.Workers, processor.Process)
	queue.Start(ctx)

	server := web.NewServer(cfg, store, queue)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	if cfg.Options.DryRun {
		fmt.Println("🔍 DRY RUN MODE - No emails will be sent")
	}

	err = server.Start()

	// Let the workers drain what was already accepted before exiting.
	queue.Stop()

	return err
}

func runParse(args []string) error {
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no message text given")
	}

	q, err := extract.Extract(text)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	out, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	return nil
}

func runStatus(limit int) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := history.NewStore(cfg.Options.HistoryPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	total, sent, failed, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	monthlySent, monthlyFailed, err := store.GetMonthlyStats()
	if err != nil {
		return fmt.Errorf("failed to get monthly stats: %w", err)
	}

	fmt.Println("📊 QuoteDesk Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("All Time:")
	fmt.Printf("  Total requests: %d\n", total)
	fmt.Printf("  Sent: %d\n", sent)
	fmt.Printf("  Failed: %d\n", failed)
	fmt.Println()
	fmt.Println("This Month:")
	fmt.Printf("  Sent: %d\n", monthlySent)
	fmt.Printf("  Failed: %d\n", monthlyFailed)

	records, err := store.GetRecent(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent quotes: %w", err)
	}

	if len(records) > 0 {
		fmt.Println()
		fmt.Printf("📜 Recent Quotes (last %d)\n", limit)
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		for _, r := range records {
			status := "✅"
			if r.Status != history.StatusSent {
				status = "❌"
			}
			who := r.Quote.CustomerName
			if who == "" {
				who = r.Sender
			}
			fmt.Printf("%s %s - %s (%s)\n",
				status,
				r.ProcessedAt.Format("2006-01-02 15:04"),
				who,
				r.Status,
			)
			if r.Error != "" {
				fmt.Printf("   Error: %s\n", r.Error)
			}
		}
	}

	return nil
}

func runSendTest(to string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := email.ValidateEmail(to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}

	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		return fmt.Errorf("failed to initialize email sender: %w", err)
	}

	engine, err := template.NewEngine(cfg.Options.CompanyName)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}

	q := &extract.QuoteRequest{
		QuoteNumber:        "TEST-1",
		CustomerName:       "Test Customer",
		Quantity:           "100",
		Units:              "Pcs",
		ProductDescription: "Sample product",
		Rate:               "1000",
		Email:              to,
	}

	renderer := document.NewPDFRenderer(cfg.Options.CompanyName, "")
	artifact, err := renderer.Render(q)
	if err != nil {
		return fmt.Errorf("failed to render test quotation: %w", err)
	}

	rendered, err := engine.RenderEmail(q)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	fmt.Printf("📤 Sending test quotation to %s via %s...\n", to, sender.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result := sender.Send(ctx, email.Message{
		To:      to,
		From:    cfg.Email.From,
		Subject: rendered.Subject,
		Body:    rendered.Body,
		Attachments: []email.Attachment{{
			Filename:    artifact.Filename,
			ContentType: "application/pdf",
			Data:        artifact.Data,
		}},
	})

	if !result.Success {
		return fmt.Errorf("send failed: %w", result.Error)
	}

	fmt.Printf("✅ Sent successfully (message id: %s)\n", result.MessageID)

	return nil
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}

func promptDefault(reader *bufio.Reader, message, fallback string) string {
	if v := prompt(reader, message); v != "" {
		return v
	}
	return fallback
}

func promptInt(reader *bufio.Reader, message string, fallback int) int {
	v := prompt(reader, message)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
