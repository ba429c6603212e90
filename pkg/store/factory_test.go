package store

import (
	"testing"
)

func TestParseStoreType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected StoreType
	}{
		{name: "parse memory lowercase", input: "memory", expected: StoreTypeMemory},
		{name: "parse memory uppercase", input: "MEMORY", expected: StoreTypeMemory},
		{name: "parse redis lowercase", input: "redis", expected: StoreTypeRedis},
		{name: "parse redis mixed case", input: "ReDiS", expected: StoreTypeRedis},
		{name: "parse redis with spaces", input: " redis ", expected: StoreTypeRedis},
		{name: "invalid input returns memory", input: "invalid", expected: StoreTypeMemory},
		{name: "empty string returns memory", input: "", expected: StoreTypeMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseStoreType(tt.input); got != tt.expected {
				t.Errorf("ParseStoreType(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStoreType_IsValid(t *testing.T) {
	tests := []struct {
		storeType StoreType
		want      bool
	}{
		{StoreTypeMemory, true},
		{StoreTypeRedis, true},
		{StoreType("invalid"), false},
		{StoreType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.storeType.String(), func(t *testing.T) {
			if got := tt.storeType.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFactory_Create_Memory(t *testing.T) {
	s, err := NewFactory(MemoryConfig()).Create()
	if err != nil {
		t.Fatalf("Factory.Create() error = %v, want nil", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Factory.Create() returned %T, want *MemoryStore", s)
	}
}

func TestFactory_Create_Redis(t *testing.T) {
	addr := startRedisContainer(t)

	s, err := NewStore(RedisConfig(RedisOptions{Addr: addr}))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer Close(s)

	if _, ok := s.(*RedisStore); !ok {
		t.Errorf("NewStore() returned %T, want *RedisStore", s)
	}
}

func TestFactory_Create_InvalidType(t *testing.T) {
	s, err := NewFactory(Config{Type: StoreType("invalid")}).Create()
	if err == nil {
		t.Error("Factory.Create() with invalid type should return error")
	}
	if s != nil {
		t.Error("Factory.Create() with invalid type should return nil store")
	}
}

func TestMustCreate(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustCreate() with invalid type should panic")
		}
	}()
	MustCreate(Config{Type: StoreType("invalid")})
}
