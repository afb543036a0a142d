package scoreboard

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// ArchiveName is the download name of the configuration bundle.
const ArchiveName = "configs.zip"

// Archive describes the configuration bundle offered for download.
type Archive struct {
	// Files are stored at the archive root under their base names.
	// Missing files are skipped.
	Files []string
	// IncludeLogos adds LayoutDir/logos_*x*.json under layout/ and the
	// whole LogosDir tree under logos/.
	IncludeLogos bool
	LayoutDir    string
	LogosDir     string
}

// Build writes the bundle as a deflated zip to w.
func (a *Archive) Build(w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, f := range a.Files {
		if err := addFile(zw, f, filepath.Base(f)); err != nil {
			if os.IsNotExist(err) {
				log.Printf("[archive] %s not found, skipping", f)
				continue
			}
			return err
		}
	}

	if a.IncludeLogos {
		if err := a.addLayouts(zw); err != nil {
			return err
		}
		if err := a.addLogos(zw); err != nil {
			return err
		}
	}
	return zw.Close()
}

func (a *Archive) addLayouts(zw *zip.Writer) error {
	matches, err := filepath.Glob(filepath.Join(a.LayoutDir, "logos_*x*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := addFile(zw, m, path.Join("layout", filepath.Base(m))); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) addLogos(zw *zip.Writer) error {
	if _, err := os.Stat(a.LogosDir); err != nil {
		return nil
	}
	log.Printf("[archive] adding logos from %s", a.LogosDir)
	return filepath.WalkDir(a.LogosDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.LogosDir, p)
		if err != nil {
			return err
		}
		return addFile(zw, p, path.Join("logos", filepath.ToSlash(rel)))
	})
}

func addFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}
