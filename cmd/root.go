// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

var (
	// Version of this software - filled in by ldflags in Makefile.
	Version string
	// BuildTime of this software - filled in by ldflags in Makefile.
	BuildTime string
)

func setupVersionBuild() {
	if Version == "" {
		Version = "v0.0.0"
	}
	if BuildTime == "" {
		BuildTime = "not recorded"
	}
}

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// NewRootCommand reads the map of subcommandFns and creates a top level cobra
// command with each of them as subcommands.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	setupVersionBuild()
	rc := &cobra.Command{
		Use:   "sparkify",
		Short: "sparkify - song play data lake ETL",
		Long: `Builds the sparkify star schema from the song and event log
JSON datasets and writes it as partitioned Parquet or Avro tables
to a local directory or S3.

Version: ` + Version + `
Build Time: ` + BuildTime + "\n",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			return setAllConfig(v, cmd.Flags(), "SPARKIFY")
		},
	}
	for _, subcomFn := range subcommandFns {
		rc.AddCommand(subcomFn(stdin, stdout, stderr))
	}
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setAllConfig takes a FlagSet to be the definition of all configuration
// options, as well as their defaults. It then reads from the command line, the
// environment, and a config file (if specified), and applies the configuration
// in that priority order. Since each flag in the set contains a pointer to
// where its value should be stored, setAllConfig can directly modify the value
// of each config variable.
//
// setAllConfig looks for environment variables which are capitalized versions
// of the flag names with dashes replaced by underscores, and prefixed with
// envPrefix plus an underscore.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	// add cmd line flag def to viper
	err := v.BindPFlags(flags)
	if err != nil {
		return err
	}

	// add env to viper
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	c := v.GetString("config")

	// add config file to viper
	if c != "" {
		if err := readConfig(v, c); err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}
	}

	// set all values from viper
	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil {
			return
		}
		if f.Changed {
			// If f.Changed is true, that means the value has already been set
			// by a flag, and we don't need to ask viper for it since the flag
			// is the highest priority. This works around a problem with string
			// slices where f.Value.Set(csvString) would cause the elements of
			// csvString to be appended to the existing value rather than
			// replacing it.
			return
		}
		if !v.IsSet(f.Name) {
			// only the flag default is known, which f already holds
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			// GetString renders a string slice from a config file as ""
			// and a slice default as "[a,b]", so slices are read as slices.
			flagErr = sv.Replace(configSlice(v, f.Name))
			return
		}
		if isSliceType(f.Value.Type()) {
			flagErr = f.Value.Set(strings.Join(configSlice(v, f.Name), ","))
			return
		}
		flagErr = f.Value.Set(v.GetString(f.Name))
	})
	return flagErr
}

// isSliceType reports whether a pflag.Value type name is one of the string
// slice types, "stringSlice" from pflag or "strings" from commandeer.
func isSliceType(typ string) bool {
	return typ == "stringSlice" || typ == "strings" || strings.HasSuffix(typ, "Slice")
}

// configSlice gets a list value from v. Env vars and INI values are comma
// separated strings, config file lists are slices.
func configSlice(v *viper.Viper, name string) []string {
	if s, ok := v.Get(name).(string); ok {
		if s == "" {
			return nil
		}
		return strings.Split(s, ",")
	}
	return v.GetStringSlice(name)
}

// readConfig reads a config file into v. Files ending in .cfg or .ini are
// read as INI, with the keys of every section upper or lower case and
// underscore or dash separated, so that an [AWS] section holding
// AWS_ACCESS_KEY_ID sets aws-access-key-id. Anything else is left to viper,
// which picks the format from the extension and falls back to TOML.
func readConfig(v *viper.Viper, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cfg", ".ini":
		vals, err := readINI(path)
		if err != nil {
			return err
		}
		return v.MergeConfigMap(vals)
	case "":
		v.SetConfigType("toml")
	}
	v.SetConfigFile(path)
	return v.ReadInConfig()
}

func readINI(path string) (map[string]interface{}, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	vals := make(map[string]interface{})
	for _, section := range f.Sections() {
		for _, key := range section.Keys() {
			name := strings.ReplaceAll(strings.ToLower(key.Name()), "_", "-")
			vals[name] = key.String()
		}
	}
	return vals, nil
}
