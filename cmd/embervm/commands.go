/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"embervm/classloader"
	"embervm/interp"
	"embervm/log"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "embervm",
		Short: "embervm interprets Java 8 class files",
	}
	root.AddCommand(runCmd(), classinfoCmd())
	return root
}

func runCmd() *cobra.Command {
	var classpath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run <main-class> [args...]",
		Short: "Run a class's main(String[]) method",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log.SetLogLevel(log.FINE)
			}

			registry := classloader.NewRegistry(512)
			if err := addClasspath(registry, classpath); err != nil {
				return err
			}

			vm := interp.NewVM(registry)
			main, res := vm.Prepare(nil)
			if res.IsThrown() {
				return reportThrown(res)
			}
			if res.Kind == interp.ResInvalid {
				return fmt.Errorf("embervm: %s", res.Message)
			}

			mainClass := strings.ReplaceAll(args[0], ".", "/")
			res = vm.RunMain(main, mainClass, args[1:])
			switch res.Kind {
			case interp.ResThrow:
				return reportThrown(res)
			case interp.ResInvalid:
				return fmt.Errorf("embervm: %s", res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&classpath, "classpath", "", "colon-separated list of directories and jars")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable FINE-level tracing")
	return cmd
}

func classinfoCmd() *cobra.Command {
	var classpath string

	cmd := &cobra.Command{
		Use:   "classinfo <class-name>",
		Short: "Resolve a class and print its linked shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := classloader.NewRegistry(512)
			if err := addClasspath(registry, classpath); err != nil {
				return err
			}
			className := strings.ReplaceAll(args[0], ".", "/")
			ct, err := registry.Resolve(className)
			if err != nil {
				return fmt.Errorf("embervm: resolving %s: %w", className, err)
			}
			printClassInfo(ct)
			return nil
		},
	}
	cmd.Flags().StringVar(&classpath, "classpath", "", "colon-separated list of directories and jars")
	return cmd
}

func addClasspath(registry *classloader.Registry, classpath string) error {
	if classpath == "" {
		return nil
	}
	for _, entry := range strings.Split(classpath, string(os.PathListSeparator)) {
		if entry == "" {
			continue
		}
		if strings.HasSuffix(entry, ".jar") {
			src, err := classloader.NewJarSource(entry)
			if err != nil {
				return fmt.Errorf("embervm: opening jar %s: %w", entry, err)
			}
			registry.AddSource(src)
			continue
		}
		registry.AddSource(classloader.NewDirSource(entry))
	}
	return nil
}

func printClassInfo(ct *classloader.ClassType) {
	fmt.Printf("class %s\n", ct.Name)
	if ct.SuperName != "" {
		fmt.Printf("  extends %s\n", ct.SuperName)
	}
	for _, iface := range ct.Interfaces {
		fmt.Printf("  implements %s\n", iface)
	}
	fmt.Printf("  fields: %d, methods: %d\n", len(ct.Fields), len(ct.Methods))
	for _, f := range ct.Fields {
		fmt.Printf("    %s %s\n", f.Descriptor, f.Name)
	}
	for _, m := range ct.Methods {
		fmt.Printf("    %s%s\n", m.Name, m.Descriptor)
	}
}

func reportThrown(res interp.ExecResult) error {
	if res.Thrown == nil {
		return fmt.Errorf("embervm: uncaught exception")
	}
	msg := res.Thrown.InternalString()
	if msg == "" {
		return fmt.Errorf("embervm: uncaught %s", res.Thrown.ClassName())
	}
	return fmt.Errorf("embervm: uncaught %s: %s", res.Thrown.ClassName(), msg)
}
