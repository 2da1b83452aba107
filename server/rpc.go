/*
	This file handles RPC commands, usually from the seisvol command line.
*/

package server

import (
	"bytes"
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/openseis/seisvol/datatype/seismic"
	"github.com/openseis/seisvol/rpc"
	"github.com/openseis/seisvol/seisvol"
)

const RPCHelpMessage = `Commands executed on the server (rpc address = %s):

	help
	about
	shutdown

	import <file path> [name] [replace]
	volumes
	surveys

For the full HTTP API, use a web browser to visit the server:

	http://%s%s
`

// doCommand acts as a switchboard for remote command execution.
func doCommand(cmd rpc.Command) (string, error) {
	switch cmd.Name() {
	case "help":
		return fmt.Sprintf(RPCHelpMessage, RPCAddress(), HTTPAddress(), WebHelp), nil

	case "about":
		return about(), nil

	case "shutdown":
		seisvol.Infof("seisvol server halting due to 'shutdown' command.\n")
		requestShutdown()
		return fmt.Sprintf("seisvol server at %s is halting.\n", RPCAddress()), nil

	case "import":
		return importCommand(cmd)

	case "volumes":
		return volumesCommand()

	case "surveys":
		return surveysCommand()

	default:
		return "", fmt.Errorf("unknown command: %q", cmd.Name())
	}
}

func about() string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "seisvol version\t%s\n", seisvol.Version)
	fmt.Fprintf(w, "Host\t%s\n", Host())
	fmt.Fprintf(w, "Config\t%s\n", ConfigLocation())
	fmt.Fprintf(w, "Store engine\t%s\n", StoreConfig().Engine)
	fmt.Fprintf(w, "Max file jobs\t%d\n", MaxFileJobs())
	if note := Note(); note != "" {
		fmt.Fprintf(w, "Note\t%s\n", note)
	}
	w.Flush()
	return buf.String()
}

func importCommand(cmd rpc.Command) (string, error) {
	s := currentService()
	if s == nil {
		return "", fmt.Errorf("server not initialized")
	}
	req := seismic.ImportRequest{
		FilePath: cmd.Argument(0),
		Name:     cmd.Argument(1),
		Replace:  cmd.Argument(2) == "replace",
	}
	if req.FilePath == "" {
		return "", fmt.Errorf("import requires a file path")
	}
	result, err := s.Import(context.Background(), req)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	v := result.Volume
	fmt.Fprintf(&buf, "Imported %q as volume %d (%s)\n", v.FilePath, v.ID, v.Name)
	fmt.Fprintf(&buf, "  %d inlines [%d, %d], %d crosslines [%d, %d], %d samples, %d traces, geometry %q\n",
		v.Metadata.NumInlines, v.Metadata.InlineMin, v.Metadata.InlineMax,
		v.Metadata.NumCrosslines, v.Metadata.CrosslineMin, v.Metadata.CrosslineMax,
		v.Metadata.NumSamples, v.Metadata.NumTraces, v.Metadata.Geometry)
	if result.Survey != nil {
		fmt.Fprintf(&buf, "  survey %q created\n", result.Survey.Name)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(&buf, "  warning: %s\n", warning)
	}
	return buf.String(), nil
}

func volumesCommand() (string, error) {
	s := currentService()
	if s == nil {
		return "", fmt.Errorf("server not initialized")
	}
	volumes, err := s.Volumes()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tName\tInlines\tCrosslines\tSamples\tGeometry\tFile\n")
	for _, v := range volumes {
		md := v.Metadata
		fmt.Fprintf(w, "%d\t%s\t%d-%d\t%d-%d\t%d\t%s\t%s\n", v.ID, v.Name,
			md.InlineMin, md.InlineMax, md.CrosslineMin, md.CrosslineMax,
			md.NumSamples, md.Geometry, v.FilePath)
	}
	w.Flush()
	return buf.String(), nil
}

func surveysCommand() (string, error) {
	s := currentService()
	if s == nil {
		return "", fmt.Errorf("server not initialized")
	}
	surveys, err := s.Surveys()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name\tInlines\tCrosslines\tOrigin\n")
	for _, sv := range surveys {
		fmt.Fprintf(w, "%s\t%d-%d/%d\t%d-%d/%d\t(%g, %g)\n", sv.Name,
			sv.InlineMin, sv.InlineMax, sv.InlineStep,
			sv.CrosslineMin, sv.CrosslineMax, sv.CrosslineStep,
			sv.OriginX, sv.OriginY)
	}
	w.Flush()
	return buf.String(), nil
}
