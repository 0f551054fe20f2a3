package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	agentx "github.com/aquadoks/sales-agent/agent"
	llmx "github.com/aquadoks/sales-agent/agent/llm"
	loopx "github.com/aquadoks/sales-agent/agent/loop"
	orderx "github.com/aquadoks/sales-agent/agent/order"
	promptx "github.com/aquadoks/sales-agent/agent/prompt"
	sqlagentx "github.com/aquadoks/sales-agent/agent/sqlagent"
	toolx "github.com/aquadoks/sales-agent/agent/tool"
	configx "github.com/aquadoks/sales-agent/pkg/config"
	_ "github.com/aquadoks/sales-agent/pkg/logger/autoload"
	openrouterx "github.com/aquadoks/sales-agent/pkg/openrouter"
	storex "github.com/aquadoks/sales-agent/store"
)

type AppConfig struct {
	// ChatID identifies the local console conversation in the chat log.
	ChatID          string        `envconfig:"CHAT_ID" split_words:"true" default:"console"`
	UserName        string        `envconfig:"USER_NAME" split_words:"true"`
	SalesPromptPath string        `envconfig:"SALES_PROMPT_PATH" split_words:"true"`
	AdminMode       bool          `envconfig:"ADMIN_MODE" split_words:"true" default:"false"`
	StartupTimeout  time.Duration `envconfig:"STARTUP_TIMEOUT" split_words:"true" default:"30s"`
	SeedCatalog     bool          `envconfig:"SEED_CATALOG" split_words:"true" default:"true"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	storeCfg := configx.MustNew[storex.Config]("DB")
	agentCfg := configx.MustNew[agentx.Config]("AGENT")
	loopCfg := configx.MustNew[loopx.Config]("LOOP")
	orderCfg := configx.MustNew[orderx.Config]("ORDER")

	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	ctx := context.Background()

	db := storex.MustNew(*storeCfg)
	defer db.Close()

	startupCtx, cancel := context.WithTimeout(ctx, appCfg.StartupTimeout)
	defer cancel()
	if err := db.Ping(startupCtx); err != nil {
		log.Fatal().Err(err).Msg("database unreachable")
	}
	if err := db.EnsureSchema(startupCtx); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}
	if appCfg.SeedCatalog {
		if err := db.SeedCatalog(startupCtx); err != nil {
			log.Fatal().Err(err).Msg("seed catalog failed")
		}
	}

	orders, err := orderx.NewService(db, *orderCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create order service failed")
	}

	executor, err := toolx.NewExecutor(db, orders, orders, agentCfg.Channel,
		toolx.WithLinker(db), toolx.WithRecorder(db))
	if err != nil {
		log.Fatal().Err(err).Msg("create tool executor failed")
	}

	salesCfg := llmCfg.For(llmx.RoleSales)
	chatModel, err := salesCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create chat model failed")
	}

	salesPrompt := promptx.NewLoader(appCfg.SalesPromptPath, promptx.Sales())
	turnLoop, err := loopx.New(chatModel, toolx.Infos(), executor.Execute, salesPrompt.Text, *loopCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create orchestration loop failed")
	}

	bot, err := agentx.New(db, db, turnLoop, *agentCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create agent failed")
	}

	var admin *sqlagentx.Agent
	if appCfg.AdminMode {
		sqlCfg := llmCfg.For(llmx.RoleSQL)
		client := openrouterx.NewClient(sqlCfg)
		if client == nil {
			log.Fatal().Msg("create admin llm client failed")
		}
		admin, err = sqlagentx.New(client, sqlCfg.Model, sqlCfg.Temperature, db, promptx.SQLAgent())
		if err != nil {
			log.Fatal().Err(err).Msg("create sql agent failed")
		}
	}

	runConsole(ctx, bot, admin, *appCfg)
}

// runConsole drives a line-oriented chat over stdin. Commands mirror the
// production surface; everything else goes through the sales agent.
func runConsole(ctx context.Context, bot *agentx.Agent, admin *sqlagentx.Agent, cfg AppConfig) {
	fmt.Println(bot.Greeting(cfg.UserName))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/exit" || line == "/quit":
			return
		case line == "/start":
			fmt.Println(bot.Greeting(cfg.UserName))
		case line == "/help":
			fmt.Println(bot.Help())
		case line == "/status":
			reply, err := bot.OrderStatus(ctx, cfg.ChatID)
			if err != nil {
				log.Error().Err(err).Msg("order status failed")
				fmt.Println(agentx.TransportApology)
				continue
			}
			fmt.Println(reply)
		case strings.HasPrefix(line, "/sql "):
			if admin == nil {
				fmt.Println("Админ-режим отключён. Запустите с APP_ADMIN_MODE=true")
				continue
			}
			reply, err := admin.Run(ctx, strings.TrimPrefix(line, "/sql "))
			if err != nil {
				log.Error().Err(err).Msg("admin query failed")
				fmt.Printf("Ошибка: %v\n", err)
				continue
			}
			fmt.Println(reply)
		default:
			reply, err := bot.HandleMessage(ctx, cfg.ChatID, line)
			if err != nil {
				log.Error().Err(err).Msg("handle message failed")
				fmt.Println(agentx.TransportApology)
				continue
			}
			fmt.Println(reply)
		}
	}
}
