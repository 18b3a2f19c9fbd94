package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whallera/whallera/internal/discovery"
	"github.com/whallera/whallera/internal/ui"
)

type jsonEndpoint struct {
	Kind     string            `json:"kind"`
	URL      string            `json:"url"`
	Name     string            `json:"name,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func newDiscoverCmd(a *app) *cobra.Command {
	var mdns bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List serial devices and bridges",
		Long: `List the places a device can be reached: local serial ports matching
the configured USB VID/PID, and with --mdns, bridges advertised on the
local network. The first entry is what other commands use when
--interface is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.discoveryOptions()
			if cmd.Flags().Changed("mdns") {
				opts.MDNS = mdns
			}

			endpoints, err := discovery.Discover(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if a.format == formatJSON {
				out := make([]jsonEndpoint, 0, len(endpoints))
				for _, ep := range endpoints {
					out = append(out, jsonEndpoint{
						Kind:     ep.Kind.String(),
						URL:      ep.URL(),
						Name:     ep.Name,
						Metadata: ep.Metadata,
					})
				}
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			p := a.printer()
			if len(endpoints) == 0 {
				p.PrintError("No device found",
					fmt.Errorf("connect your Whallera or specify it using --interface"),
					[]string{
						"Check the USB cable and that the device is powered",
						"Use --mdns to look for bridges on the local network",
					})
				return fmt.Errorf("no device found")
			}

			if p.Plain() {
				for _, ep := range endpoints {
					p.Println(ep.URL())
				}
				return nil
			}

			details := make([]ui.Detail, 0, len(endpoints))
			for _, ep := range endpoints {
				details = append(details, ui.Detail{Key: ep.Kind.String(), Value: describeEndpoint(ep)})
			}
			p.PrintResult(ui.NewSuccessResult(fmt.Sprintf("%d found", len(endpoints)), details...))
			return nil
		},
	}

	cmd.Flags().BoolVar(&mdns, "mdns", false, "Also browse for bridges over mDNS (default from config)")
	return cmd
}

func describeEndpoint(ep *discovery.Endpoint) string {
	s := ep.URL()
	if ep.Name != "" {
		s += " (" + ep.Name + ")"
	}
	if vid, pid := ep.GetMetadata("vid"), ep.GetMetadata("pid"); vid != "" {
		s += fmt.Sprintf(" [%s:%s]", vid, pid)
	}
	return s
}
