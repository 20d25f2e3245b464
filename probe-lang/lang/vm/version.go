// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package vm

// Version, Release, and Copyright identify this VM build the way LRDB's
// "connected" handshake reports LUA_VERSION/LUA_RELEASE/LUA_COPYRIGHT (see
// _examples/original_source/include/lrdb/basic_server.hpp).
const (
	Version   = "0.1"
	Release   = "PROBE 0.1.0"
	Copyright = "Copyright (C) 2024 The ProbeChain Authors"
)
