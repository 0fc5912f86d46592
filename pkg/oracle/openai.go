// Copyright 2025 The SCC Agent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/kube-scc/scc-agent/pkg/config"
	httpclient "github.com/kube-scc/scc-agent/pkg/http"
	"github.com/kube-scc/scc-agent/pkg/logger"
	"github.com/kube-scc/scc-agent/pkg/metrics"
)

// jsonBlock extracts the outermost JSON object from a free-text completion
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// OpenAIOracle consults an OpenAI-compatible chat-completions endpoint for
// SCC adjustment advice. Endpoint failures and unparseable completions are
// degraded to an Analysis with Success=false and no adjustments; the
// controller treats that as "nothing to apply" rather than a fault.
type OpenAIOracle struct {
	cfg    config.OracleConfig
	client *httpclient.HardenedClient
	log    *logger.Logger
}

// NewOpenAIOracle builds an oracle client from the agent configuration
func NewOpenAIOracle(cfg config.OracleConfig) *OpenAIOracle {
	httpCfg := httpclient.DefaultClientConfig()
	httpCfg.ServiceName = "oracle"
	httpCfg.RateLimitEnabled = true
	httpCfg.RateLimitRPS = 1
	httpCfg.RateLimitBurst = 2

	return &OpenAIOracle{
		cfg:    cfg,
		client: httpclient.NewHardenedClient(httpCfg),
		log:    logger.GetLogger().WithFields(logger.Fields{Component: "oracle"}),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends the failure context to the endpoint and parses the structured
// advice out of the completion.
func (o *OpenAIOracle) Analyze(ctx context.Context, fc FailureContext) (*Analysis, error) {
	if o.cfg.APIKey == "" {
		o.log.Warn("Oracle API key not configured")
		metrics.OracleCalls.WithLabelValues("unconfigured").Inc()
		return degraded("oracle API key not configured"), nil
	}

	prompt, err := buildFailurePrompt(fc)
	if err != nil {
		metrics.OracleCalls.WithLabelValues("error").Inc()
		return degraded("building prompt: " + err.Error()), nil
	}

	body, err := json.Marshal(chatRequest{
		Model: o.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		metrics.OracleCalls.WithLabelValues("error").Inc()
		return degraded("encoding request: " + err.Error()), nil
	}

	req, err := newChatRequest(ctx, o.cfg.Endpoint, o.cfg.APIKey, body)
	if err != nil {
		metrics.OracleCalls.WithLabelValues("error").Inc()
		return degraded("building request: " + err.Error()), nil
	}

	resp, err := o.client.Do(req)
	if err != nil {
		o.log.Error("Oracle call failed", logger.Fields{Error: err})
		metrics.OracleCalls.WithLabelValues("error").Inc()
		return degraded("oracle call failed: " + err.Error()), nil
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.OracleCalls.WithLabelValues("error").Inc()
		return degraded("reading response: " + err.Error()), nil
	}
	if resp.StatusCode != 200 {
		o.log.Error("Oracle endpoint returned error", logger.Fields{
			Reason: fmt.Sprintf("status %d", resp.StatusCode),
		})
		metrics.OracleCalls.WithLabelValues("error").Inc()
		return degraded(fmt.Sprintf("oracle endpoint returned status %d", resp.StatusCode)), nil
	}

	var chat chatResponse
	if err := json.Unmarshal(payload, &chat); err != nil || len(chat.Choices) == 0 {
		metrics.OracleCalls.WithLabelValues("parse_error").Inc()
		return degraded("malformed oracle response"), nil
	}

	analysis := ParseAnalysis(chat.Choices[0].Message.Content)
	if analysis.Success {
		metrics.OracleCalls.WithLabelValues("success").Inc()
	} else {
		metrics.OracleCalls.WithLabelValues("parse_error").Inc()
	}
	o.log.Info("Oracle analysis completed", logger.Fields{
		Count: len(analysis.SuggestedAdjustments),
		Additional: map[string]interface{}{
			"confidence": analysis.ConfidenceScore,
		},
	})
	return analysis, nil
}

// ParseAnalysis extracts the structured analysis from a completion. Anything
// without a parseable JSON object yields Success=false and no adjustments.
func ParseAnalysis(completion string) *Analysis {
	match := jsonBlock.FindString(completion)
	if match == "" {
		return degraded("no JSON object in oracle output")
	}

	var parsed struct {
		ErrorAnalysis         string       `json:"error_analysis"`
		RootCause             string       `json:"root_cause"`
		SuggestedAdjustments  []Adjustment `json:"suggested_adjustments"`
		AlternativeApproaches []string     `json:"alternative_approaches"`
		SecurityImplications  []string     `json:"security_implications"`
		ConfidenceScore       float64      `json:"confidence_score"`
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return degraded("unparseable oracle output: " + err.Error())
	}

	for i := range parsed.SuggestedAdjustments {
		if parsed.SuggestedAdjustments[i].Impact == "" {
			parsed.SuggestedAdjustments[i].Impact = "medium"
		}
	}

	return &Analysis{
		Success:               true,
		ErrorAnalysis:         parsed.ErrorAnalysis,
		RootCause:             parsed.RootCause,
		SuggestedAdjustments:  parsed.SuggestedAdjustments,
		AlternativeApproaches: parsed.AlternativeApproaches,
		SecurityImplications:  parsed.SecurityImplications,
		ConfidenceScore:       parsed.ConfidenceScore,
	}
}

func degraded(reason string) *Analysis {
	return &Analysis{
		Success:       false,
		ErrorAnalysis: reason,
		RootCause:     "oracle unavailable or unparseable",
	}
}

func newChatRequest(ctx context.Context, endpoint, apiKey string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}
