/*
This command routes a single CloudFront event offline, the same way the
edge function does, and prints the request object that CloudFront would
forward.

	canaryfn -event function < viewer-request.json
	canaryfn -event lambda -next-origin '{host: app-next.s3.amazonaws.com}' \
		-stable-origin '{host: app-stable.s3.amazonaws.com}' origin-request.json

Without -orgs and -policy-file, the default organizations are rolled
out. The exit status is 1 when the event is invalid.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/zalando-incubator/canary-edge/canary"
	"github.com/zalando-incubator/canary-edge/cloudfront"
	"github.com/zalando-incubator/canary-edge/rollout"
)

const (
	eventUsage        = "runtime of the event: function (CloudFront Functions viewer request), lambda (Lambda@Edge origin request) or auto (detected from the event)"
	orgsUsage         = "comma separated list of the organization IDs routed to the next build"
	policyFileUsage   = "YAML file containing the organization IDs routed to the next build"
	topologyUsage     = "path or origin, defaults to path for function events and origin for lambda events"
	stableOriginUsage = "origin of the stable build in YAML format, required by the origin topology"
	nextOriginUsage   = "origin of the next build in YAML format, required by the origin topology"
	verboseUsage      = "log the routing decision to stderr"
)

type options struct {
	event        string
	orgs         string
	policyFile   string
	topology     string
	stableOrigin string
	nextOrigin   string
	verbose      bool
	file         string
}

func parseArgs(args []string, output io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("canaryfn", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&o.event, "event", "function", eventUsage)
	fs.StringVar(&o.orgs, "orgs", "", orgsUsage)
	fs.StringVar(&o.policyFile, "policy-file", "", policyFileUsage)
	fs.StringVar(&o.topology, "topology", "", topologyUsage)
	fs.StringVar(&o.stableOrigin, "stable-origin", "", stableOriginUsage)
	fs.StringVar(&o.nextOrigin, "next-origin", "", nextOriginUsage)
	fs.BoolVar(&o.verbose, "v", false, verboseUsage)
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		o.file = fs.Arg(0)
	default:
		return o, fmt.Errorf("too many arguments: %v", fs.Args())
	}

	if o.orgs != "" && o.policyFile != "" {
		return o, errors.New("only one of -orgs and -policy-file can be set")
	}

	return o, nil
}

func parseOrigin(name, value string) (canary.Origin, error) {
	var origin canary.Origin
	if value == "" {
		return origin, fmt.Errorf("origin topology requires -%s", name)
	}

	if err := yaml.UnmarshalStrict([]byte(value), &origin); err != nil {
		return origin, fmt.Errorf("invalid -%s: %w", name, err)
	}

	return origin, nil
}

func splitOrgs(s string) []string {
	var orgs []string
	for _, org := range strings.Split(s, ",") {
		if org = strings.TrimSpace(org); org != "" {
			orgs = append(orgs, org)
		}
	}

	return orgs
}

func createPolicies(o options) (rollout.Provider, error) {
	switch {
	case o.orgs != "":
		return rollout.NewStatic(splitOrgs(o.orgs)...), nil
	case o.policyFile != "":
		p, err := rollout.NewFileSource(o.policyFile).Load(context.Background())
		if err != nil {
			return nil, err
		}

		return rollout.NewStatic(p.Orgs()...), nil
	default:
		return rollout.NewStatic(rollout.DefaultOrgs...), nil
	}
}

func createStrategy(kind cloudfront.EventKind, o options) (canary.Strategy, error) {
	topology := canary.PathTopology
	if kind == cloudfront.LambdaEventKind {
		topology = canary.OriginTopology
	}

	if o.topology != "" {
		var err error
		if topology, err = canary.ParseTopology(o.topology); err != nil {
			return nil, err
		}
	}

	if topology == canary.PathTopology {
		return canary.PathRewrite{}, nil
	}

	stable, err := parseOrigin("stable-origin", o.stableOrigin)
	if err != nil {
		return nil, err
	}

	next, err := parseOrigin("next-origin", o.nextOrigin)
	if err != nil {
		return nil, err
	}

	return canary.NewOriginSwap(stable, next)
}

func readEvent(file string, stdin io.Reader) ([]byte, error) {
	if file == "" {
		return io.ReadAll(stdin)
	}

	return os.ReadFile(file)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	log.SetOutput(stderr)
	if o.verbose {
		log.SetLevel(log.DebugLevel)
	}

	data, err := readEvent(o.file, stdin)
	if err != nil {
		return err
	}

	var kind cloudfront.EventKind
	if o.event == "auto" {
		kind, err = cloudfront.DetectEventKind(data)
	} else {
		kind, err = cloudfront.ParseEventKind(o.event)
	}

	if err != nil {
		return err
	}

	policies, err := createPolicies(o)
	if err != nil {
		return err
	}

	strategy, err := createStrategy(kind, o)
	if err != nil {
		return err
	}

	h, err := cloudfront.NewHandler(cloudfront.Options{Policies: policies, Strategy: strategy})
	if err != nil {
		return err
	}

	out, err := h.HandleJSON(kind, data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, string(out))
	return err
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "canaryfn: %v\n", err)
		}

		os.Exit(1)
	}
}
