package redis

import "github.com/redis/go-redis/v9"

// Connect parses a redis connection URL and returns a ready client.
// Pool size, if present in the URL query string, is honored by ParseURL.
func Connect(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return redis.NewClient(opts), nil
}
