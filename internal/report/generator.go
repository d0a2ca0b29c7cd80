package report

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"marketbrief/internal/config"
	"marketbrief/internal/feed"
	"marketbrief/internal/logger"
)

const systemPrompt = `You are a Senior Market Strategist. Follow these steps exactly:
1. Call fetch_market_news ONCE.
2. Format the response as a 'MARKET INTELLIGENCE REPORT' for %s.
3. Group news into: 🏦 BANKING, 💻 IT & TECH, 📈 FII/MACRO.
4. For EACH item, use this format: • <b>Title</b>: Short summary. <a href='LINK'>Read More</a>
5. Use ONLY the info provided. If a sector is missing, skip it.`

const toolDesc = "Extracts real-time market news from Livemint and The Economic Times RSS feeds."

// fetchParams declares the tool's input contract. The query is accepted
// but unused: the source list is fixed.
type fetchParams struct {
	Query string `json:"query" jsonschema:"description=free-form query (ignored)"`
}

// Generator runs a bounded tool-calling agent that pulls the feed batch
// through the fetch tool and synthesizes the final report.
type Generator struct {
	agent   *react.Agent
	limiter *rate.Limiter
}

// NewGenerator wires the chat model, the fetch tool and the iteration cap
// into an agent.
func NewGenerator(ctx context.Context, cfg *config.Config, fetcher *feed.Fetcher) (*Generator, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}

	fetchTool, err := utils.InferTool("fetch_market_news", toolDesc,
		func(ctx context.Context, _ *fetchParams) (string, error) {
			return fetcher.FetchBatch(ctx), nil
		})
	if err != nil {
		return nil, fmt.Errorf("init fetch tool: %w", err)
	}

	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: []tool.BaseTool{fetchTool},
		},
		MaxStep: cfg.Agent.MaxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("init agent: %w", err)
	}

	limit := rate.Limit(float64(cfg.Concurrency.RPM) / 60.0)
	limiter := rate.NewLimiter(limit, cfg.Concurrency.QPS)

	return &Generator{agent: agent, limiter: limiter}, nil
}

// Generate runs the agent once with the task and the date label and
// returns the synthesized report. Iteration-cap and provider errors
// propagate to the caller.
func (g *Generator) Generate(ctx context.Context, task string, dateLabel string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("limiter wait: %w", err)
	}

	logger.Log.Infof("generating report for %s", dateLabel)
	out, err := g.agent.Generate(ctx, buildMessages(task, dateLabel))
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// buildMessages assembles the system and task messages for one run.
func buildMessages(task string, dateLabel string) []*schema.Message {
	return []*schema.Message{
		{Role: schema.System, Content: fmt.Sprintf(systemPrompt, dateLabel)},
		{Role: schema.User, Content: task},
	}
}
