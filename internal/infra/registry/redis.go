package registry

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

var _ Tree = (*RedisTree)(nil)

const (
	fieldKind      = "kind"
	fieldContent   = "content"
	propertyPrefix = "p:"

	kindCollection = "collection"
	kindResource   = "resource"
)

// RedisTree stores the tree in Redis. Every node is a hash at
// {prefix}:node:{path}; the names of its children are kept in a set at
// {prefix}:children:{path}.
type RedisTree struct {
	client *redis.Client
	prefix string
}

// NewRedisTree connects to Redis and returns a tree under the key prefix.
func NewRedisTree(redisAddr, password string, db int, prefix string) *RedisTree {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
	return NewRedisTreeWithClient(client, prefix)
}

// NewRedisTreeWithClient returns a tree using an existing client.
func NewRedisTreeWithClient(client *redis.Client, prefix string) *RedisTree {
	if prefix == "" {
		prefix = "tmplhub:registry"
	}
	return &RedisTree{client: client, prefix: prefix}
}

func (t *RedisTree) nodeKey(p string) string     { return t.prefix + ":node:" + p }
func (t *RedisTree) childrenKey(p string) string { return t.prefix + ":children:" + p }

// Exists reports whether a node is stored at p.
func (t *RedisTree) Exists(ctx context.Context, p string) (bool, error) {
	n, err := t.client.Exists(ctx, t.nodeKey(Clean(p))).Result()
	if err != nil {
		return false, fmt.Errorf("checking node %s: %w", p, err)
	}
	return n > 0, nil
}

// Get returns the node at p, or nil when absent.
func (t *RedisTree) Get(ctx context.Context, p string) (*Node, error) {
	p = Clean(p)
	fields, err := t.client.HGetAll(ctx, t.nodeKey(p)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading node %s: %w", p, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	n := &Node{
		Path:       p,
		Collection: fields[fieldKind] == kindCollection,
		Properties: make(map[string]string),
	}
	for k, v := range fields {
		switch {
		case k == fieldContent:
			n.Content = []byte(v)
		case strings.HasPrefix(k, propertyPrefix):
			n.Properties[strings.TrimPrefix(k, propertyPrefix)] = v
		}
	}
	return n, nil
}

// Put stores n, replacing the node at its path. Missing ancestors are
// created as empty collections.
func (t *RedisTree) Put(ctx context.Context, n *Node) error {
	p := Clean(n.Path)
	if p == "/" {
		return fmt.Errorf("cannot replace the root node")
	}

	pipe := t.client.TxPipeline()
	for child := p; child != "/"; {
		parent := path.Dir(child)
		pipe.SAdd(ctx, t.childrenKey(parent), path.Base(child))
		pipe.HSetNX(ctx, t.nodeKey(parent), fieldKind, kindCollection)
		child = parent
	}

	kind := kindResource
	if n.Collection {
		kind = kindCollection
	}
	fields := map[string]any{fieldKind: kind}
	if !n.Collection {
		fields[fieldContent] = n.Content
	}
	for name, v := range n.Properties {
		fields[propertyPrefix+name] = v
	}

	pipe.Del(ctx, t.nodeKey(p))
	pipe.HSet(ctx, t.nodeKey(p), fields)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing node %s: %w", p, err)
	}
	return nil
}

// Delete removes the node at p and its whole subtree.
func (t *RedisTree) Delete(ctx context.Context, p string) error {
	p = Clean(p)

	var keys []string
	queue := []string{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		keys = append(keys, t.nodeKey(cur), t.childrenKey(cur))

		names, err := t.client.SMembers(ctx, t.childrenKey(cur)).Result()
		if err != nil {
			return fmt.Errorf("listing children of %s: %w", cur, err)
		}
		for _, name := range names {
			queue = append(queue, path.Join(cur, name))
		}
	}

	pipe := t.client.TxPipeline()
	pipe.Del(ctx, keys...)
	if p != "/" {
		pipe.SRem(ctx, t.childrenKey(path.Dir(p)), path.Base(p))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting node %s: %w", p, err)
	}
	return nil
}

// Children returns the full paths of the direct children of p.
func (t *RedisTree) Children(ctx context.Context, p string) ([]string, error) {
	p = Clean(p)
	names, err := t.client.SMembers(ctx, t.childrenKey(p)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", p, err)
	}
	sort.Strings(names)

	out := make([]string, len(names))
	for i, name := range names {
		out[i] = path.Join(p, name)
	}
	return out, nil
}

// Close closes the Redis connection.
func (t *RedisTree) Close() error {
	return t.client.Close()
}
