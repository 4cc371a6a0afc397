package config

var ReadOnly *GlobalReadOnly = &GlobalReadOnly{config: &Config{
	downloadBufferSize:     256 * 1024,
	streamWriterBufferSize: 256 * 1024,
}}

// for global readonly access
type GlobalReadOnly struct {
	config *Config
}

func (g *GlobalReadOnly) DownloadBufferSize() int {
	return g.config.downloadBufferSize
}

func (g *GlobalReadOnly) DownloadWriterBufferSize() int {
	return g.config.streamWriterBufferSize
}
