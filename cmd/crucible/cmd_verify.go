package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/ochairo/crucible/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/crucible/internal/domain-orchestrators"
	"github.com/ochairo/crucible/internal/domain/entities"
	"github.com/ochairo/crucible/internal/external-adapters/pipelinefile"
)

func (a *app) cmdVerify() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Verify the checksum manifest in dist and, given a public key, its signature",
		Description: `Examples:
  crucible verify
  crucible verify --key release-public.asc
  crucible verify --checksums dist/checksums.txt --algorithm sha512`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dist", Usage: "Release directory (default: pipeline dist)"},
			&cli.StringFlag{Name: "checksums", Usage: "Checksum manifest (default: from metadata.json)"},
			&cli.StringFlag{Name: "algorithm", Usage: "sha256 or sha512 (default: release.checksum.algorithm)"},
			&cli.StringFlag{Name: "key", Usage: "Armored or binary OpenPGP public key for the signature"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			proj, err := a.loadProject(ctx)
			if err != nil {
				return err
			}

			distDir := proj.distDir(cmd)
			manifest, signature := locateManifest(distDir, proj.pipeline)
			if path := cmd.String("checksums"); path != "" {
				manifest = path
				signature = path + gateways.SignatureSuffix
			}

			algorithm := proj.pipeline.Release.Checksum.Algorithm
			if cmd.IsSet("algorithm") {
				algorithm = cmd.String("algorithm")
			}
			checksummer, err := gateways.NewChecksummer(algorithm)
			if err != nil {
				return usageError(err)
			}

			verified, failures := 0, 0
			fmt.Fprintf(a.stdout, "🔍 Verifying %s\n\n", manifest)

			fmt.Fprintln(a.stdout, "📋 Verifying checksums...")
			entries, err := checksummer.VerifyManifest(ctx, manifest)
			if err != nil {
				fmt.Fprintf(a.stdout, "%s %v\n\n", color.RedString("❌ Checksum verification FAILED:"), err)
				failures++
			} else {
				fmt.Fprintf(a.stdout, "%s (%d files)\n\n", color.GreenString("✅ Checksums verified"), len(entries))
				verified++
			}

			if key := cmd.String("key"); key != "" {
				fmt.Fprintln(a.stdout, "🔐 Verifying signature...")
				fingerprint, err := gateways.NewManifestSigner().Verify(ctx, key, manifest, signature)
				if err != nil {
					fmt.Fprintf(a.stdout, "%s %v\n\n", color.RedString("❌ Signature verification FAILED:"), err)
					failures++
				} else {
					fmt.Fprintf(a.stdout, "%s by %s\n\n", color.GreenString("✅ Signature verified"), fingerprint)
					verified++
				}
			}

			fmt.Fprintln(a.stdout, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
			fmt.Fprintf(a.stdout, "✅ Verified: %d checks\n", verified)
			if failures > 0 {
				fmt.Fprintf(a.stdout, "❌ Failed: %d checks\n", failures)
			}
			fmt.Fprintln(a.stdout, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

			if failures > 0 {
				return failed(fmt.Errorf("%d verification checks failed", failures))
			}
			return nil
		},
	}
}

// locateManifest finds the checksum manifest and signature of the last release in distDir.
// metadata.json names them; without it the checksum name template is used as a plain name.
func locateManifest(distDir string, pipeline *entities.Pipeline) (string, string) {
	manifest := pipeline.Release.Checksum.NameTemplate
	if manifest == "" {
		manifest = pipelinefile.DefaultChecksumName
	}
	signature := manifest + gateways.SignatureSuffix

	//nolint:gosec // G304: metadata lives in the user's dist directory
	if data, err := os.ReadFile(filepath.Join(distDir, orchestrators.MetadataFileName)); err == nil {
		var meta entities.ReleaseMetadata
		if json.Unmarshal(data, &meta) == nil && meta.ChecksumFile != "" {
			manifest = meta.ChecksumFile
			if meta.SignatureFile != "" {
				signature = meta.SignatureFile
			} else {
				signature = manifest + gateways.SignatureSuffix
			}
		}
	}

	return filepath.Join(distDir, manifest), filepath.Join(distDir, signature)
}
