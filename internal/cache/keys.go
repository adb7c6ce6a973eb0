package cache

func KeyFile(id int64) string {
	return Key("files", id)
}
