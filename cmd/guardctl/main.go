package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dhawalhost/mcpguard/internal/authz"
	"github.com/dhawalhost/mcpguard/internal/policy"
	"github.com/dhawalhost/mcpguard/pkg/client"
)

const defaultBaseURL = "http://localhost:8090"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		err = runValidate(os.Args[2:])
	case "test":
		err = runTest(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: guardctl <command> [flags]

Commands:
  validate <file>...   Validate policy YAML files
  test                 Simulate a decision against local policy files
  list                 List policies loaded in a running guardsvc

Test flags:
  -policy-dir DIR      Directory of policy YAML files (required)
  -user ID             User id of the simulated caller
  -roles R1,R2         Roles of the simulated caller
  -agent ID            Agent id of the simulated caller
  -type TYPE           Resource type: tools, resources, prompts (default tools)
  -name NAME           Capability name (required)
  -action ACTION       Action (default call)

List flags:
  -base-url URL        guardsvc base URL (default `+defaultBaseURL+`)
  -api-key KEY         API key sent as X-API-Key
`)
}

func runValidate(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("validate requires at least one file")
	}
	loader := policy.NewLoader(nil)
	failed := 0
	for _, path := range args {
		p, err := loader.LoadFile(path)
		if err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Printf("OK   %s (policy %q, %d rules)\n", path, p.Name, len(p.Rules))
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed validation", failed)
	}
	return nil
}

func runTest(args []string) error {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	policyDir := fs.String("policy-dir", "", "directory of policy YAML files")
	user := fs.String("user", "test_user", "user id")
	roles := fs.String("roles", "", "comma-separated roles")
	agent := fs.String("agent", "", "agent id")
	resType := fs.String("type", "tools", "resource type")
	name := fs.String("name", "", "capability name")
	action := fs.String("action", "call", "action")
	legacy := fs.Bool("legacy-tool-fallback", false, "enable the cross-type tool matcher compatibility mode")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *policyDir == "" || *name == "" {
		return fmt.Errorf("test requires -policy-dir and -name")
	}

	policies, err := policy.NewLoader(nil).LoadDir(*policyDir)
	if err != nil {
		return err
	}
	engine, err := authz.NewEngine(policies, authz.WithLegacyToolFallback(*legacy))
	if err != nil {
		return err
	}

	auth := authz.AuthContext{
		UserID:        *user,
		AgentID:       *agent,
		Authenticated: true,
		Method:        authz.MethodNone,
	}
	if *roles != "" {
		for _, r := range strings.Split(*roles, ",") {
			if r = strings.TrimSpace(r); r != "" {
				auth.Roles = append(auth.Roles, r)
			}
		}
	}

	decision := engine.Evaluate(auth, authz.ResourceContext{
		Type:     authz.ResourceType(*resType),
		Resource: authz.Resource{Name: *name},
		Action:   *action,
		Method:   *resType + "/" + *action,
	})

	verdict := "DENIED"
	if decision.Allowed {
		verdict = "ALLOWED"
	}
	fmt.Printf("%s (%s)\n", verdict, decision.Reason)
	if decision.MatchedRule != "" {
		fmt.Printf("  matched rule:    %s\n", decision.MatchedRule)
	}
	fmt.Printf("  evaluated rules: %d\n", decision.EvaluatedRules)
	fmt.Printf("  evaluation time: %.3fms\n", decision.EvaluationTime)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	baseURL := fs.String("base-url", defaultBaseURL, "guardsvc base URL")
	apiKey := fs.String("api-key", "", "API key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cli := client.New(client.Config{BaseURL: *baseURL, APIKey: *apiKey})
	names, err := cli.ListPolicies(context.Background())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
